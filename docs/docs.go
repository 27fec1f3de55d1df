// Package docs registers the swagger document served under /docs/.
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
        "/public/healthz": {
            "get": {
                "produces": ["application/json"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "string"}}
                }
            }
        },
        "/create": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Create product",
                "parameters": [
                    {
                        "description": "Product",
                        "name": "product",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/api.createProductRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/api.envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.envelope"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.envelope"}}
                }
            }
        },
        "/products": {
            "get": {
                "produces": ["application/json"],
                "summary": "List products",
                "parameters": [
                    {"type": "string", "description": "Product ID", "name": "id", "in": "query"},
                    {"type": "string", "description": "Exact name, case-insensitive", "name": "name", "in": "query"},
                    {"type": "number", "description": "Minimum price, inclusive", "name": "min_price", "in": "query"},
                    {"type": "number", "description": "Maximum price, inclusive", "name": "max_price", "in": "query"},
                    {"type": "integer", "description": "Explicit offset", "name": "offset", "in": "query"},
                    {"type": "integer", "description": "1-based page number", "name": "page_number", "in": "query"},
                    {"type": "integer", "description": "Page size", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/api.envelope"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/catalog.Page"}}}
                            ]
                        }
                    },
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.envelope"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.envelope"}}
                }
            }
        },
        "/order": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Place order",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Replays the first response for a repeated key",
                        "name": "Idempotency-Key",
                        "in": "header"
                    },
                    {
                        "description": "Order",
                        "name": "order",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/api.placeOrderRequest"}
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/api.envelope"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/order.Receipt"}}}
                            ]
                        }
                    },
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.envelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.envelope"}},
                    "422": {"description": "Idempotency key reused with another body", "schema": {"$ref": "#/definitions/api.envelope"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.envelope"}}
                }
            }
        },
        "/orders/{id}": {
            "get": {
                "produces": ["application/json"],
                "summary": "Get order",
                "parameters": [
                    {"type": "string", "description": "Order ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/api.envelope"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/order.Order"}}}
                            ]
                        }
                    },
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.envelope"}}
                }
            }
        }
    },
    "definitions": {
        "api.envelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {}
            }
        },
        "api.createProductRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "price": {"type": "number"},
                "quantity": {"type": "integer"}
            }
        },
        "api.placeOrderRequest": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/order.Item"}},
                "city": {"type": "string"},
                "country": {"type": "string"},
                "zipcode": {"type": "string"}
            }
        },
        "catalog.Product": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "price": {"type": "number"},
                "quantity": {"type": "integer"}
            }
        },
        "catalog.PageInfo": {
            "type": "object",
            "properties": {
                "limit": {"type": "integer"},
                "nextOffset": {"type": "integer"},
                "prevOffset": {"type": "integer"},
                "total": {"type": "integer"}
            }
        },
        "catalog.Page": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/catalog.Product"}},
                "page": {"$ref": "#/definitions/catalog.PageInfo"}
            }
        },
        "order.Item": {
            "type": "object",
            "properties": {
                "product_id": {"type": "string"},
                "bought_quantity": {"type": "integer"}
            }
        },
        "order.Address": {
            "type": "object",
            "properties": {
                "city": {"type": "string"},
                "country": {"type": "string"},
                "zipcode": {"type": "string"}
            }
        },
        "order.Receipt": {
            "type": "object",
            "properties": {
                "order_id": {"type": "string"},
                "total_bill_amount": {"type": "number"}
            }
        },
        "order.Order": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/order.Item"}},
                "created_on": {"type": "string"},
                "total_amount": {"type": "number"},
                "user_address": {"$ref": "#/definitions/order.Address"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Storefront API",
	Description:      "Product catalog and order placement",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
