package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers the API docs:
// - GET /swagger/index.html  -> Swagger UI loading the document below
// - GET /swagger/doc.json    -> OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
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
    <title>platform-sync API docs</title>
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
  "info": { "title": "platform-sync", "version": "v0.1.0" },
  "components": {
    "schemas": {
      "Envelope": {"type":"object","properties":{"status":{"type":"integer"},"message":{"type":"string"},"data":{}}},
      "PlatformInput": {"type":"object","required":["name"],"properties":{"name":{"type":"string"},"courseIds":{"type":"array","items":{"type":"integer"}}}},
      "CourseInput": {"type":"object","required":["title"],"properties":{"title":{"type":"string"},"platformId":{"type":"integer","nullable":true}}},
      "UserInput": {"type":"object","required":["name","email"],"properties":{"name":{"type":"string"},"email":{"type":"string"},"courseIds":{"type":"array","items":{"type":"integer"}}}},
      "EnrollmentInput": {"type":"object","required":["courseIds"],"properties":{"courseIds":{"type":"array","items":{"type":"integer"}}}}
    }
  },
  "paths": {
    "/api/platforms": {
      "get": { "summary": "List platforms", "parameters": [{"name":"page","in":"query","schema":{"type":"integer"}},{"name":"size","in":"query","schema":{"type":"integer"}}], "responses": { "200": { "description": "platforms" } } },
      "post": { "summary": "Create platform and claim courses", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/PlatformInput"}}}}, "responses": { "201": { "description": "created" }, "404": { "description": "unknown course ids" }, "409": { "description": "name taken" } } }
    },
    "/api/platforms/{id}": {
      "get": { "summary": "Get platform", "responses": { "200": { "description": "platform" }, "404": { "description": "not found" } } },
      "put": { "summary": "Rename platform and replace its courses", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/PlatformInput"}}}}, "responses": { "200": { "description": "updated" }, "404": { "description": "not found" }, "409": { "description": "name taken" } } },
      "delete": { "summary": "Delete platform and its document", "responses": { "200": { "description": "deleted" }, "404": { "description": "not found" } } }
    },
    "/api/platforms/{id}/courses": {
      "get": { "summary": "Courses of a platform, read from its document", "responses": { "200": { "description": "courses with enrolled users" }, "404": { "description": "no document" } } }
    },
    "/api/platforms/{id}/users": {
      "get": { "summary": "Distinct users of a platform, read from its document", "responses": { "200": { "description": "users with course ids" }, "404": { "description": "no document" } } }
    },
    "/api/courses": {
      "get": { "summary": "List courses", "responses": { "200": { "description": "courses" } } },
      "post": { "summary": "Create course", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/CourseInput"}}}}, "responses": { "201": { "description": "created" }, "409": { "description": "title taken" } } }
    },
    "/api/courses/{id}": {
      "get": { "summary": "Get course", "responses": { "200": { "description": "course" }, "404": { "description": "not found" } } },
      "put": { "summary": "Update course, possibly moving it to another platform", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/CourseInput"}}}}, "responses": { "200": { "description": "updated" } } },
      "delete": { "summary": "Delete course", "responses": { "200": { "description": "deleted" } } }
    },
    "/api/users": {
      "get": { "summary": "List users", "responses": { "200": { "description": "users" } } },
      "post": { "summary": "Create user", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/UserInput"}}}}, "responses": { "201": { "description": "created" }, "409": { "description": "email taken" } } }
    },
    "/api/users/{id}": {
      "get": { "summary": "Get user", "responses": { "200": { "description": "user" } } },
      "put": { "summary": "Update user", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/UserInput"}}}}, "responses": { "200": { "description": "updated" } } },
      "delete": { "summary": "Delete user", "responses": { "200": { "description": "deleted" } } }
    },
    "/api/users/{id}/courses": {
      "put": { "summary": "Replace enrollments", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/EnrollmentInput"}}}}, "responses": { "200": { "description": "replaced" }, "404": { "description": "unknown user or course ids" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
