// Package docs holds the Swagger 2.0 description of the fcsrv API.
// Regenerate with `swag init -g cmd/fcsrv/docs.go -o docs`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/task": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["task"],
                "summary": "Solve a challenge task",
                "parameters": [
                    {
                        "description": "Task",
                        "name": "task",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.Task"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.TaskResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.TaskResult"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/types.TaskResult"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.TaskResult"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.TaskResult"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.TaskResult"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Registry and server status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        },
        "/variants": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Supported challenge variants",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.VariantsResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.Task": {
            "type": "object",
            "properties": {
                "api_key": {"type": "string", "example": "secret"},
                "images": {"type": "array", "items": {"type": "string"}},
                "game_variant_instructions": {"type": "array", "items": {"type": "string"}, "example": ["3d_rollball_objects", "Use the arrows to rotate the object to face in the direction of the hand"]}
            }
        },
        "types.TaskResult": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "unknown variant type: foo"},
                "solved": {"type": "boolean", "example": true},
                "objects": {"type": "array", "items": {"type": "integer"}, "example": [3]}
            }
        },
        "types.PredictorStatus": {
            "type": "object",
            "properties": {
                "variant": {"type": "string", "example": "card"},
                "state": {"type": "string", "example": "ready"},
                "active": {"type": "boolean", "example": true},
                "error": {"type": "string"},
                "ready_at_unix": {"type": "integer", "example": 1700000000}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "predictors": {"type": "array", "items": {"$ref": "#/definitions/types.PredictorStatus"}},
                "builds_total": {"type": "integer", "example": 3},
                "fallback": {"type": "string", "example": "capsolver"},
                "limit": {"type": "integer", "example": 3},
                "uptime_seconds": {"type": "integer", "example": 3600},
                "server_time_unix": {"type": "integer", "example": 1700000000}
            }
        },
        "types.VariantInfo": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "example": "3d_rollball_objects"},
                "ordinal": {"type": "integer", "example": 1},
                "artifact": {"type": "string", "example": "3d_rollball_objects.onnx"},
                "shape": {"type": "string", "example": "pair"},
                "grayscale": {"type": "boolean"}
            }
        },
        "types.VariantsResponse": {
            "type": "object",
            "properties": {
                "variants": {"type": "array", "items": {"$ref": "#/definitions/types.VariantInfo"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "fcsrv API",
	Description:      "Image classification challenge solver with local ONNX inference and remote fallback providers.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
