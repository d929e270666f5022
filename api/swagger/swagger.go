package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Badger Tutors API",
        "description": "Peer tutoring marketplace: escrowed session payments, review gate and student registry",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "AdminKey": {"type": "apiKey", "name": "X-Admin-Key", "in": "header"}
    },
    "tags": [
        {"name": "Registry", "description": "Student registration and sign-in"},
        {"name": "Sessions", "description": "Session booking and escrow lifecycle"},
        {"name": "Receipts", "description": "Payment receipts for released sessions"},
        {"name": "Reviews", "description": "Gated tutor reviews and ratings"},
        {"name": "Admin", "description": "Operator overrides and sweeps"}
    ],
    "paths": {
        "/registry/register": {
            "post": {
                "tags": ["Registry"],
                "summary": "Register a student wallet",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Identifier already registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registry/login": {
            "post": {
                "tags": ["Registry"],
                "summary": "Exchange registry identifiers for an access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Token issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Identifiers do not match", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List the caller's sessions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["scheduled", "awaiting_confirmation", "completed", "disputed", "cancelled"]},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Book a session and lock payment in escrow",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BookSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Booked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Only students may book", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Get a session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not a party to the session", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/history": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Escrow audit trail of a session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/confirm": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Confirm the session took place",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ConfirmSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Confirmed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Caller does not hold the role", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Session disputed or stale", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/report": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Report an issue and freeze escrow",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportIssueRequest"}}
                ],
                "responses": {
                    "200": {"description": "Disputed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Payment already released", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/cancel": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Cancel a session and refund the student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Cancelled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Session cannot be cancelled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/receipt": {
            "get": {
                "tags": ["Receipts"],
                "summary": "Download the payment receipt",
                "produces": ["application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF receipt"},
                    "409": {"description": "Payment not released yet", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/receipt/link": {
            "post": {
                "tags": ["Receipts"],
                "summary": "Create a signed, expiring receipt link",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Link created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/receipts/{token}": {
            "get": {
                "tags": ["Receipts"],
                "summary": "Open a shared receipt link",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF receipt"},
                    "401": {"description": "Link expired or invalid", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tutors/{tutorId}/reviews": {
            "get": {
                "tags": ["Reviews"],
                "summary": "List reviews of a tutor",
                "parameters": [
                    {"name": "tutorId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Reviews"],
                "summary": "Submit a review after a released session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "tutorId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitReviewRequest"}}
                ],
                "responses": {
                    "201": {"description": "Review accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid rating or text", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not eligible to review", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tutors/{tutorId}/reviews/eligibility": {
            "get": {
                "tags": ["Reviews"],
                "summary": "Check whether the caller may review a tutor",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "tutorId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tutors/{tutorId}/reviews/export": {
            "get": {
                "tags": ["Reviews"],
                "summary": "Export a tutor's reviews as CSV",
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "tutorId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "CSV file"}
                }
            }
        },
        "/tutors/{tutorId}/rating": {
            "get": {
                "tags": ["Reviews"],
                "summary": "Aggregate rating and reputation score",
                "parameters": [
                    {"name": "tutorId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/sessions/{id}": {
            "get": {
                "tags": ["Admin"],
                "summary": "Inspect a session and its audit trail",
                "security": [{"AdminKey": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/sessions/{id}/release": {
            "post": {
                "tags": ["Admin"],
                "summary": "Release escrow to the tutor",
                "security": [{"AdminKey": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/ReleaseEscrowRequest"}}
                ],
                "responses": {
                    "200": {"description": "Released", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already released or disputed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/escrow/sweep": {
            "post": {
                "tags": ["Admin"],
                "summary": "Run the auto-release sweep now",
                "security": [{"AdminKey": []}],
                "responses": {
                    "200": {"description": "Sweep result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "required": ["wallet_address", "email", "student_id"],
            "properties": {
                "wallet_address": {"type": "string"},
                "email": {"type": "string"},
                "student_id": {"type": "string", "description": "10 digits"},
                "role": {"type": "string", "enum": ["student", "tutor"]}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["wallet_address", "email", "student_id"],
            "properties": {
                "wallet_address": {"type": "string"},
                "email": {"type": "string"},
                "student_id": {"type": "string"}
            }
        },
        "BookSessionRequest": {
            "type": "object",
            "required": ["tutor_id", "tutor_wallet", "scheduled_time", "duration", "amount"],
            "properties": {
                "tutor_id": {"type": "string"},
                "tutor_wallet": {"type": "string"},
                "course_id": {"type": "string"},
                "scheduled_time": {"type": "string", "format": "date-time"},
                "duration": {"type": "integer", "description": "minutes"},
                "amount": {"type": "number"}
            }
        },
        "ConfirmSessionRequest": {
            "type": "object",
            "required": ["role"],
            "properties": {
                "role": {"type": "string", "enum": ["student", "tutor"]}
            }
        },
        "ReportIssueRequest": {
            "type": "object",
            "required": ["reason"],
            "properties": {
                "reason": {"type": "string"}
            }
        },
        "SubmitReviewRequest": {
            "type": "object",
            "required": ["session_id", "rating", "review_text"],
            "properties": {
                "session_id": {"type": "string"},
                "rating": {"type": "integer", "minimum": 1, "maximum": 5},
                "review_text": {"type": "string"}
            }
        },
        "ReleaseEscrowRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string", "enum": ["both_confirmed", "deadline_reached", "admin_override"]}
            }
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
                "message": {"type": "string"},
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
