// Package docs registers the OpenAPI document served by gin-swagger.
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
        "/": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["Meta"],
                "summary": "Greeting",
                "operationId": "hello",
                "responses": {
                    "200": {"description": "Hello World!", "schema": {"type": "string"}}
                }
            }
        },
        "/products": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["Products"],
                "summary": "List products",
                "description": "Returns one page of products, optionally restricted to a category (case-insensitive exact match).",
                "operationId": "listProducts",
                "parameters": [
                    {"type": "string", "example": "Bakery sweet treat", "description": "Category filter", "name": "category", "in": "query"},
                    {"minimum": 1, "type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 5, "description": "Items per page", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.Page"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Products"],
                "summary": "Create a product",
                "description": "Appends a product. With an Idempotency-Key, a retry by the same client returns the original product and sets Idempotency-Replayed.",
                "operationId": "createProduct",
                "parameters": [
                    {"type": "string", "example": "create-7f3a", "description": "Retry-safe key", "name": "Idempotency-Key", "in": "header"},
                    {"description": "All five product fields", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.ProductPatch"}}
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {"$ref": "#/definitions/domain.Product"},
                        "headers": {"Idempotency-Replayed": {"type": "string", "description": "true when served from the ledger"}}
                    },
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/products/search": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["Products"],
                "summary": "Search products by name",
                "operationId": "searchProducts",
                "parameters": [
                    {"type": "string", "example": "cake", "description": "Case-insensitive substring", "name": "name", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.Product"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/products/stats": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["Products"],
                "summary": "Count products per category",
                "operationId": "productStats",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "integer"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/products/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Products"],
                "summary": "Get a product",
                "operationId": "getProduct",
                "parameters": [{"type": "integer", "description": "Product ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Product"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Products"],
                "summary": "Update a product",
                "description": "Shallow-merges the supplied fields. The id cannot be changed.",
                "operationId": "updateProduct",
                "parameters": [
                    {"type": "integer", "description": "Product ID", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.ProductPatch"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Product"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["Products"],
                "summary": "Delete a product",
                "operationId": "deleteProduct",
                "parameters": [{"type": "integer", "description": "Product ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "The removed product", "schema": {"$ref": "#/definitions/domain.Product"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/async-products/{id}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["Products"],
                "summary": "Slow product lookup",
                "description": "Resolves after a fixed delay. Only id 1 exists.",
                "operationId": "asyncProduct",
                "parameters": [{"type": "string", "description": "Product ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.ProductSummary"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Product": {
            "type": "object",
            "properties": {
                "id": {"type": "integer", "example": 1},
                "name": {"type": "string", "example": "Cup cake"},
                "description": {"type": "string", "example": "Soft, fluffy and moist cake."},
                "price": {"type": "number", "example": 40.99},
                "category": {"type": "string", "example": "Bakery sweet treat"},
                "inStock": {"type": "boolean", "example": true}
            }
        },
        "domain.ProductPatch": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "example": "Cup cake"},
                "description": {"type": "string", "example": "Soft, fluffy and moist cake."},
                "price": {"type": "number", "example": 40.99},
                "category": {"type": "string", "example": "Bakery sweet treat"},
                "inStock": {"type": "boolean", "example": true}
            }
        },
        "domain.ProductSummary": {
            "type": "object",
            "properties": {
                "id": {"type": "integer", "example": 1},
                "name": {"type": "string", "example": "Test Product"}
            }
        },
        "services.Page": {
            "type": "object",
            "properties": {
                "total": {"type": "integer", "example": 2},
                "page": {"type": "integer", "example": 1},
                "limit": {"type": "integer", "example": 5},
                "data": {"type": "array", "items": {"$ref": "#/definitions/domain.Product"}}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"},
                "code": {"type": "string", "example": "not_found"},
                "error": {"type": "string", "example": "Product not found"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "X-API-Key", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Product Catalog API",
	Description:      "CRUD and query endpoints over an in-memory product catalog.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
