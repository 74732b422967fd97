package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable API",
        "description": "Class timetable generation, review and conflict auditing",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "Timetables", "description": "Generate, review, apply and audit class timetables"},
        {"name": "Timetable Templates", "description": "Named generation presets"}
    ],
    "paths": {
        "/timetables/generate": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Generate a timetable proposal for a class",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "Proposal", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid settings", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Class or template not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Class has no subjects", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/proposals/{id}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Get a timetable proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown or expired proposal", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/proposals/{id}/compare": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Compare a proposal with the live timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown or expired proposal", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/proposals/{id}/apply": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Replace the class timetable with the proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Applied", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown or expired proposal", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Proposal was rejected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "TIMETABLE_APPLY_INCOMPLETE when the old timetable was removed but the new one was not saved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/proposals/{id}/reject": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Reject a proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Rejected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Proposal was already applied", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/classes/{classId}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Get the live timetable of a class",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Class not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/classes/{classId}/export": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Export the live timetable of a class",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "Weekly grid document", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/conflicts": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Audit live timetables for conflicts",
                "parameters": [
                    {"name": "class_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Conflict report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/templates": {
            "get": {
                "tags": ["Timetable Templates"],
                "summary": "List timetable templates",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Timetable Templates"],
                "summary": "Create a timetable template",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTimetableTemplateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/templates/{id}": {
            "get": {
                "tags": ["Timetable Templates"],
                "summary": "Get a timetable template",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Timetable Templates"],
                "summary": "Delete a timetable template",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "TimetableSettings": {
            "type": "object",
            "properties": {
                "periodsPerDay": {"type": "integer", "minimum": 4, "maximum": 8},
                "daysPerWeek": {"type": "integer", "enum": [5, 6]},
                "minPeriodsPerSubject": {"type": "integer", "minimum": 1, "maximum": 10},
                "maxPeriodsPerSubject": {"type": "integer", "minimum": 1, "maximum": 15},
                "breakfastTime": {"type": "string", "example": "08:45"},
                "lunchTime": {"type": "string", "example": "11:00"},
                "shortBreakAfterPeriod": {"type": "integer", "minimum": 2, "maximum": 5}
            }
        },
        "GenerateTimetableRequest": {
            "type": "object",
            "properties": {
                "classId": {"type": "string"},
                "templateId": {"type": "string"},
                "settings": {"$ref": "#/definitions/TimetableSettings"},
                "seed": {"type": "integer", "format": "int64"}
            },
            "required": ["classId"]
        },
        "CreateTimetableTemplateRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "maxLength": 120},
                "settings": {"$ref": "#/definitions/TimetableSettings"}
            },
            "required": ["name"]
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
