// Package docs registers the OpenAPI description served at /swagger.
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
        "/predict": {
            "post": {
                "description": "Extracts the feature vector from the first N samples, normalizes it and returns the thresholded decision",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["classifier"],
                "summary": "Classify a window of motion samples",
                "parameters": [
                    {
                        "description": "Accelerometer and gyroscope samples",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.PredictRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.PredictResponse"}},
                    "400": {"description": "Missing or insufficient data", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Schema mismatch or inference failure", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/features": {
            "post": {
                "description": "Returns the ordered feature vector the classifier would see, without scoring it",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["classifier"],
                "summary": "Extract features",
                "parameters": [
                    {
                        "description": "Accelerometer and gyroscope samples",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.PredictRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Missing or insufficient data", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Schema mismatch", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/predict/latest": {
            "post": {
                "produces": ["application/json"],
                "tags": ["classifier"],
                "summary": "Classify the latest stored readings",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.PredictResponse"}},
                    "400": {"description": "Not enough stored readings", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Storage unavailable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/schema": {
            "get": {
                "produces": ["application/json"],
                "tags": ["classifier"],
                "summary": "Feature schema",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/sensor/batch": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sensor"],
                "summary": "Ingest sensor readings",
                "parameters": [
                    {
                        "description": "Readings",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.BatchIngestRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.BatchIngestResponse"}},
                    "400": {"description": "Invalid batch", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Storage unavailable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/sensor": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sensor"],
                "summary": "Latest sensor reading",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SensorReading"}},
                    "404": {"description": "No readings stored", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/predictions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["classifier"],
                "summary": "Recent predictions",
                "parameters": [
                    {
                        "type": "integer",
                        "default": 20,
                        "description": "Maximum number of predictions (1-100)",
                        "name": "limit",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Invalid limit", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Degraded", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Service statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "types.SensorRecord": {
            "type": "object",
            "properties": {
                "AcX": {"type": "number"},
                "AcY": {"type": "number"},
                "AcZ": {"type": "number"},
                "GyX": {"type": "number"},
                "GyY": {"type": "number"},
                "GyZ": {"type": "number"}
            }
        },
        "types.PredictRequest": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/types.SensorRecord"}}
            }
        },
        "types.PredictResponse": {
            "type": "object",
            "properties": {
                "predicted_label": {"type": "integer"},
                "predicted_probability": {"type": "number"}
            }
        },
        "types.SensorReading": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "AcX": {"type": "number"},
                "AcY": {"type": "number"},
                "AcZ": {"type": "number"},
                "GyX": {"type": "number"},
                "GyY": {"type": "number"},
                "GyZ": {"type": "number"},
                "bpm": {"type": "integer"},
                "timestamp": {"type": "string"}
            }
        },
        "types.BatchIngestRequest": {
            "type": "object",
            "required": ["batch_data"],
            "properties": {
                "batch_data": {"type": "array", "items": {"$ref": "#/definitions/types.SensorReading"}}
            }
        },
        "types.BatchIngestResponse": {
            "type": "object",
            "properties": {
                "successful": {"type": "integer"},
                "failed": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Motion Classifier API",
	Description:      "Binary activity classification from windows of accelerometer and gyroscope samples.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
