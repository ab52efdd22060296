package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>quizbank API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "quizbank", "version": "v1.0.0" },
  "components": {
    "schemas": {
      "IngestRequest": { "type": "object", "required": ["question_num"], "properties": { "question_num": { "oneOf": [ { "type": "integer", "minimum": 1 }, { "type": "string", "pattern": "^\\s*-?[0-9]+\\s*$" } ] } } },
      "Question": { "type": "object", "description": "Empty object when no question is stored yet.", "properties": { "id": { "type": "string" }, "text": { "type": "string" }, "answer": { "type": "string" }, "date": { "type": "string", "format": "date-time" } } }
    },
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer" } }
  },
  "paths": {
    "/api/v1/questions": {
      "post": {
        "summary": "Store question_num new unique questions and return the most recent one",
        "security": [ { "bearer": [] } ],
        "requestBody": { "content": { "application/json": { "schema": { "$ref": "#/components/schemas/IngestRequest" } } } },
        "responses": {
          "200": { "description": "most recent question or {}", "content": { "application/json": { "schema": { "$ref": "#/components/schemas/Question" } } } },
          "400": { "description": "missing, non-integer or non-positive question_num" },
          "401": { "description": "missing or invalid token" },
          "429": { "description": "rate limited" },
          "500": { "description": "source or store failure" }
        }
      }
    },
    "/test_method/": {
      "post": { "summary": "Legacy alias of POST /api/v1/questions", "requestBody": { "content": { "application/json": { "schema": { "$ref": "#/components/schemas/IngestRequest" } } } }, "responses": { "200": { "description": "most recent question or {}" } } }
    },
    "/api/v1/questions/latest": {
      "get": { "summary": "Most recently stored question", "responses": { "200": { "description": "most recent question or {}" } } }
    },
    "/api/v1/ingestions/{id}": {
      "get": {
        "summary": "Summary of one ingestion run",
        "parameters": [ { "name": "id", "in": "path", "required": true, "schema": { "type": "string" } } ],
        "responses": { "200": { "description": "run summary" }, "404": { "description": "unknown run" } }
      }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "text exposition" } } } }
  }
}`
