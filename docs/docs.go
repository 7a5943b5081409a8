// Package docs holds the OpenAPI document served at /swagger. Keep it in
// sync with the handler annotations when routes change.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/login": {
            "post": {
                "description": "Verifies credentials and returns a bearer token. rememberMe selects the longer token lifetime.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "User Login",
                "parameters": [
                    {
                        "description": "User login credentials",
                        "name": "loginBody",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/auth.LoginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Login successful", "schema": {"$ref": "#/definitions/auth.LoginResponse"}},
                    "400": {"description": "Bad Request - Invalid input", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}},
                    "401": {"description": "Unauthorized - Invalid credentials", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}}
                }
            }
        },
        "/auth/register": {
            "post": {
                "description": "Registers a new account. The password confirmation is checked but never stored.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "User Registration",
                "parameters": [
                    {
                        "description": "User registration details",
                        "name": "registerBody",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/auth.RegisterRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "User created successfully", "schema": {"$ref": "#/definitions/auth.UserResponse"}},
                    "400": {"description": "Bad Request - Invalid input", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}},
                    "409": {"description": "Conflict - Email already in use", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}}
                }
            }
        },
        "/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Retrieves the profile of the authenticated user.",
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Get current user's profile",
                "responses": {
                    "200": {"description": "Successfully retrieved user profile", "schema": {"$ref": "#/definitions/auth.UserResponse"}},
                    "401": {"description": "Unauthorized - Invalid or missing token", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}},
                    "404": {"description": "Not Found - User not found", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}}
                }
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "description": "Partially updates firstName, lastName and birthDate. Email and password are not editable here.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Update current user's profile",
                "parameters": [
                    {
                        "description": "Fields to update",
                        "name": "profile",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/users.UpdateProfileRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Successfully updated user profile", "schema": {"$ref": "#/definitions/auth.UserResponse"}},
                    "400": {"description": "Bad Request - Invalid or empty patch", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}},
                    "401": {"description": "Unauthorized - Invalid or missing token", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}},
                    "404": {"description": "Not Found - User not found", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}}
                }
            }
        },
        "/me/access-history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns the most recent successful logins, newest first. limit defaults to 5 and is clamped to [1, 50].",
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Access history",
                "parameters": [
                    {"type": "integer", "description": "Maximum number of entries", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Recent logins", "schema": {"$ref": "#/definitions/users.AccessHistoryResponse"}},
                    "401": {"description": "Unauthorized - Invalid or missing token", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}}
                }
            }
        },
        "/me/avatar": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Accepts a JPEG, PNG or WebP image in the \"file\" form field.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Upload avatar",
                "parameters": [
                    {"type": "file", "description": "Avatar image", "name": "file", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "Avatar updated", "schema": {"$ref": "#/definitions/auth.UserResponse"}},
                    "400": {"description": "Bad Request - Missing file", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}},
                    "401": {"description": "Unauthorized - Invalid or missing token", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}},
                    "413": {"description": "Payload Too Large", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/apperror.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "apperror.ErrorResponse": {
            "type": "object",
            "properties": {
                "details": {"type": "array", "items": {"$ref": "#/definitions/apperror.FieldError"}},
                "error": {"type": "string"}
            }
        },
        "apperror.FieldError": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "auth.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string", "example": "ada@example.com"},
                "password": {"type": "string", "example": "Analyt1cal"},
                "rememberMe": {"type": "boolean", "example": true}
            }
        },
        "auth.LoginResponse": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string", "example": "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."},
                "expiresAt": {"type": "string"},
                "tokenType": {"type": "string", "example": "Bearer"},
                "user": {"$ref": "#/definitions/models.PublicUser"}
            }
        },
        "auth.RegisterRequest": {
            "type": "object",
            "required": ["birthDate", "confirmPassword", "email", "firstName", "lastName", "password"],
            "properties": {
                "avatarUrl": {"type": "string", "maxLength": 2048, "example": "https://example.com/ada.png"},
                "birthDate": {"type": "string", "example": "1815-12-10"},
                "confirmPassword": {"type": "string", "example": "Analyt1cal"},
                "email": {"type": "string", "maxLength": 255, "example": "ada@example.com"},
                "firstName": {"type": "string", "maxLength": 100, "example": "Ada"},
                "lastName": {"type": "string", "maxLength": 100, "example": "Lovelace"},
                "password": {"type": "string", "description": "At most 72 bytes once UTF-8 encoded", "maxLength": 72, "minLength": 8, "example": "Analyt1cal"}
            }
        },
        "auth.UserResponse": {
            "type": "object",
            "properties": {
                "user": {"$ref": "#/definitions/models.PublicUser"}
            }
        },
        "models.AccessLogEntry": {
            "type": "object",
            "properties": {
                "createdAt": {"type": "string"},
                "id": {"type": "string", "example": "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d"},
                "ipAddress": {"type": "string", "example": "203.0.113.7"},
                "userAgent": {"type": "string", "example": "Mozilla/5.0"}
            }
        },
        "models.PublicUser": {
            "type": "object",
            "properties": {
                "avatarUrl": {"type": "string", "example": "/uploads/avatars/5d41402abc4b2a76b9719d911017c592.png"},
                "birthDate": {"type": "string", "example": "1815-12-10"},
                "createdAt": {"type": "string"},
                "email": {"type": "string", "example": "ada@example.com"},
                "firstName": {"type": "string", "example": "Ada"},
                "id": {"type": "string", "example": "3f2b8c4e-8a51-4a53-9d1c-1f6f0c9e2a10"},
                "lastName": {"type": "string", "example": "Lovelace"},
                "updatedAt": {"type": "string"}
            }
        },
        "users.AccessHistoryResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/models.AccessLogEntry"}}
            }
        },
        "users.UpdateProfileRequest": {
            "type": "object",
            "properties": {
                "birthDate": {"type": "string", "example": "1906-12-09"},
                "firstName": {"type": "string", "maxLength": 100, "minLength": 1, "example": "Grace"},
                "lastName": {"type": "string", "maxLength": 100, "minLength": 1, "example": "Hopper"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the access token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "accountd API",
	Description:      "User accounts: registration, login, profile, avatar and access history.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
