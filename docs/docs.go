// Package docs registers the OpenAPI description of the pdfmerge API with
// swag. It follows the layout of swag init output; keep it in step with the
// @Router annotations on the engine handlers.
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
        "/merge": {
            "post": {
                "description": "Validate the input files and layout, record a job and queue it for the merge worker",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Merge"],
                "summary": "Queue a merge",
                "parameters": [
                    {
                        "description": "Files, output and layout",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/engine.MergeRequest"}
                    }
                ],
                "responses": {
                    "202": {"description": "Job ID", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Invalid request", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Input file not found", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Queue full", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/validate": {
            "post": {
                "description": "Report which paths are supported existing images or PDFs",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Merge"],
                "summary": "Validate input files",
                "parameters": [
                    {
                        "description": "Paths to check",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/engine.ValidateRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Valid and invalid paths", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Invalid request", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/fileinfo": {
            "get": {
                "description": "Size, kind and image or PDF details of a file on the server",
                "produces": ["application/json"],
                "tags": ["Merge"],
                "summary": "Get file information",
                "parameters": [
                    {"type": "string", "description": "Path of the file", "name": "path", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "File information", "schema": {"$ref": "#/definitions/merge.FileInfo"}},
                    "400": {"description": "Missing path", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "File not found", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/pagesizes": {
            "get": {
                "description": "Named page sizes accepted in a merge layout, in millimetres",
                "produces": ["application/json"],
                "tags": ["Merge"],
                "summary": "List page sizes",
                "responses": {
                    "200": {"description": "Presets", "schema": {"type": "object", "additionalProperties": {"$ref": "#/definitions/layout.PageSize"}}}
                }
            }
        },
        "/jobs": {
            "get": {
                "description": "Jobs newest first, optionally filtered by a comma separated list of statuses",
                "produces": ["application/json"],
                "tags": ["Jobs"],
                "summary": "List jobs",
                "parameters": [
                    {"type": "string", "description": "Statuses to include, e.g. failed,cancelled", "name": "status", "in": "query"},
                    {"type": "integer", "description": "Number of jobs to return (default: 20, max: 100)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Offset for pagination (default: 0)", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "List of jobs", "schema": {"type": "array", "items": {"$ref": "#/definitions/database.Job"}}},
                    "400": {"description": "Unknown status", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/jobs/active": {
            "get": {
                "description": "All jobs that are currently pending or running",
                "produces": ["application/json"],
                "tags": ["Jobs"],
                "summary": "Get active jobs",
                "responses": {
                    "200": {"description": "List of active jobs", "schema": {"type": "array", "items": {"$ref": "#/definitions/database.Job"}}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/jobs/{id}": {
            "get": {
                "description": "Status, progress, page count and error of a merge job",
                "produces": ["application/json"],
                "tags": ["Jobs"],
                "summary": "Get job by ID",
                "parameters": [
                    {"type": "string", "description": "Job ID (ULID)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Job details", "schema": {"$ref": "#/definitions/database.Job"}},
                    "400": {"description": "Invalid job ID", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Job not found", "schema": {"type": "object", "additionalProperties": true}}
                }
            },
            "delete": {
                "description": "Ask a pending or running merge to stop at the next segment boundary",
                "produces": ["application/json"],
                "tags": ["Jobs"],
                "summary": "Cancel a job",
                "parameters": [
                    {"type": "string", "description": "Job ID (ULID)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "202": {"description": "Cancellation requested", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Invalid job ID", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Job not found", "schema": {"type": "object", "additionalProperties": true}},
                    "409": {"description": "Job already finished", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/about": {
            "get": {
                "description": "Retrieve information about the application configuration, version, and database",
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Get application information",
                "responses": {
                    "200": {"description": "Application information", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "Status", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "engine.LayoutRequest": {
            "type": "object",
            "properties": {
                "pageSize": {"type": "string"},
                "widthMm": {"type": "number"},
                "heightMm": {"type": "number"},
                "rows": {"type": "integer"},
                "cols": {"type": "integer"},
                "marginMm": {"type": "number"},
                "spacingMm": {"type": "number"}
            }
        },
        "engine.MergeRequest": {
            "type": "object",
            "properties": {
                "files": {"type": "array", "items": {"type": "string"}},
                "output": {"type": "string"},
                "layout": {"$ref": "#/definitions/engine.LayoutRequest"}
            }
        },
        "engine.ValidateRequest": {
            "type": "object",
            "properties": {
                "files": {"type": "array", "items": {"type": "string"}}
            }
        },
        "layout.PageSize": {
            "type": "object",
            "properties": {
                "widthMm": {"type": "number"},
                "heightMm": {"type": "number"}
            }
        },
        "merge.FileInfo": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "path": {"type": "string"},
                "sizeBytes": {"type": "integer"},
                "kind": {"type": "string", "enum": ["Image", "PDF", "Unknown"]},
                "image": {
                    "type": "object",
                    "properties": {
                        "width": {"type": "integer"},
                        "height": {"type": "integer"},
                        "format": {"type": "string"},
                        "colorMode": {"type": "string"}
                    }
                },
                "pdf": {
                    "type": "object",
                    "properties": {
                        "pageCount": {"type": "integer"},
                        "title": {"type": "string"},
                        "author": {"type": "string"},
                        "subject": {"type": "string"}
                    }
                },
                "error": {"type": "string"}
            }
        },
        "database.Job": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "running", "completed", "failed", "cancelled"]},
                "progress": {"type": "integer"},
                "step": {"type": "string"},
                "inputs": {"type": "integer"},
                "output": {"type": "string"},
                "layout": {"type": "string"},
                "pages": {"type": "integer"},
                "segments": {"type": "integer"},
                "errorKind": {"type": "string"},
                "error": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"},
                "startedAt": {"type": "string"},
                "finishedAt": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "pdfmerge API",
	Description:      "Merges JPEG/PNG images and PDF documents into a single PDF.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
