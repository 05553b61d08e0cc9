// Package docs holds the OpenAPI document served under /api/swagger.
// Regenerate with `swag init -g cmd/server/main.go` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "termsOfService": "http://swagger.io/terms/",
        "contact": {
            "name": "API Support",
            "email": "support@eventsocial.local"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Get the authenticated user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.User"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/auth/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Request a registration code",
                "parameters": [
                    {"description": "Registration request", "name": "request", "in": "body", "required": true,
                     "schema": {"type": "object", "properties": {"email": {"type": "string"}}}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.msgResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/auth/verify": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Confirm registration",
                "parameters": [
                    {"description": "Verification request", "name": "request", "in": "body", "required": true,
                     "schema": {"$ref": "#/definitions/service.ConfirmRegistrationInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/service.AuthResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "User login",
                "parameters": [
                    {"description": "Credentials", "name": "request", "in": "body", "required": true,
                     "schema": {"type": "object", "properties": {"email": {"type": "string"}, "password": {"type": "string"}}}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.AuthResult"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/users/{userId}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Get a user profile",
                "parameters": [{"type": "integer", "name": "userId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.User"}}}
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "tags": ["users"],
                "summary": "Update own profile",
                "parameters": [
                    {"type": "integer", "name": "userId", "in": "path", "required": true},
                    {"type": "string", "name": "username", "in": "formData"},
                    {"type": "string", "name": "bio", "in": "formData"},
                    {"type": "file", "name": "profileImage", "in": "formData"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.User"}}}
            }
        },
        "/users/{userId}/posts": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "List a user's posts",
                "parameters": [{"type": "integer", "name": "userId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Post"}}}}
            }
        },
        "/users/{userId}/followers": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "List followers",
                "parameters": [{"type": "integer", "name": "userId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.User"}}}}
            }
        },
        "/users/{userId}/following": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "List followed users",
                "parameters": [{"type": "integer", "name": "userId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.User"}}}}
            }
        },
        "/users/{userId}/follow": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Follow a user",
                "parameters": [{"type": "integer", "name": "userId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.msgResponse"}}}
            }
        },
        "/users/{userId}/unfollow": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Unfollow a user",
                "parameters": [{"type": "integer", "name": "userId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.msgResponse"}}}
            }
        },
        "/posts": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "List all posts, newest first",
                "parameters": [
                    {"type": "integer", "default": 20, "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Post"}}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json", "multipart/form-data"],
                "tags": ["posts"],
                "summary": "Create a post",
                "parameters": [
                    {"description": "Post", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/server.postRequest"}}
                ],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}
            }
        },
        "/posts/feed": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "Posts from followed users",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Post"}}}}
            }
        },
        "/posts/my/interested": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "Events the caller is interested in",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Post"}}}}
            }
        },
        "/posts/my/attended": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "Past events the caller attended",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Post"}}}}
            }
        },
        "/posts/{postId}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "Get a post",
                "parameters": [{"type": "integer", "name": "postId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Post"}}}
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "Update own post",
                "parameters": [
                    {"type": "integer", "name": "postId", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/server.postRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "Delete own post",
                "parameters": [{"type": "integer", "name": "postId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.msgResponse"}}}
            }
        },
        "/posts/{postId}/interest": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "Toggle interest in an upcoming event",
                "parameters": [{"type": "integer", "name": "postId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}
            }
        },
        "/posts/{postId}/attend": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "Mark attendance at a started event",
                "parameters": [{"type": "integer", "name": "postId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}
            }
        },
        "/posts/{postId}/attendance": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "Toggle attendance",
                "parameters": [{"type": "integer", "name": "postId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/posts/{postId}/join-interest-group": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["chat"],
                "summary": "Join the chat of an event post",
                "parameters": [{"type": "integer", "name": "postId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/posts/{postId}/comments": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["comments"],
                "summary": "List comments on a post, newest first",
                "parameters": [{"type": "integer", "name": "postId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Comment"}}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["comments"],
                "summary": "Comment on a post",
                "parameters": [
                    {"type": "integer", "name": "postId", "in": "path", "required": true},
                    {"description": "Comment", "name": "request", "in": "body", "required": true,
                     "schema": {"type": "object", "properties": {"content": {"type": "string"}}}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Comment"}}}
            }
        },
        "/chat": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["chat"],
                "summary": "List the caller's event chats",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Chat"}}}}
            }
        },
        "/chat/post/{postId}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["chat"],
                "summary": "Get the chat of an event post",
                "parameters": [{"type": "integer", "name": "postId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Chat"}}}
            }
        },
        "/chat/join/{postId}": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["chat"],
                "summary": "Join the chat of an event post",
                "parameters": [{"type": "integer", "name": "postId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/chat/{chatId}/messages": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["chat"],
                "summary": "List chat messages, oldest first",
                "parameters": [
                    {"type": "integer", "name": "chatId", "in": "path", "required": true},
                    {"type": "integer", "default": 20, "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Message"}}}}
            }
        },
        "/chat/{chatId}/read": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["chat"],
                "summary": "Mark every message in a chat as read",
                "parameters": [{"type": "integer", "name": "chatId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/chat/{chatId}/media": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "tags": ["chat"],
                "summary": "Upload an image or video for a chat message",
                "parameters": [
                    {"type": "integer", "name": "chatId", "in": "path", "required": true},
                    {"type": "file", "name": "file", "in": "formData", "required": true}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/service.StoredMedia"}}}
            }
        },
        "/notifications": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["notifications"],
                "summary": "List the caller's notifications, newest first",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Notification"}}}}
            }
        },
        "/notifications/unread-count": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["notifications"],
                "summary": "Count unread notifications",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/notifications/read-all": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["notifications"],
                "summary": "Mark every notification as read",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/notifications/{notificationId}/read": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["notifications"],
                "summary": "Mark a notification as read",
                "parameters": [{"type": "integer", "name": "notificationId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/notifications/{notificationId}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["notifications"],
                "summary": "Delete a notification",
                "parameters": [{"type": "integer", "name": "notificationId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.msgResponse"}}}
            }
        },
        "/ws": {
            "get": {
                "tags": ["realtime"],
                "summary": "Realtime gateway",
                "description": "Upgrade to a websocket. Frames are {\"event\",\"data\"} JSON objects.",
                "parameters": [{"type": "string", "name": "token", "in": "query"}],
                "responses": {"101": {"description": "Switching Protocols"}, "426": {"description": "Upgrade Required"}}
            }
        }
    },
    "definitions": {
        "models.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "code": {"type": "string"}}
        },
        "models.User": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "email": {"type": "string"},
                "username": {"type": "string"},
                "user_type": {"type": "string"},
                "is_verified": {"type": "boolean"},
                "bio": {"type": "string"},
                "profile_image_url": {"type": "string"},
                "followers_count": {"type": "integer"},
                "following_count": {"type": "integer"},
                "is_following": {"type": "boolean"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "models.Post": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "author_id": {"type": "integer"},
                "author": {"$ref": "#/definitions/models.User"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "media_urls": {"type": "array", "items": {"type": "string"}},
                "is_event": {"type": "boolean"},
                "event_date_time": {"type": "string"},
                "location": {"type": "string"},
                "interested_count": {"type": "integer"},
                "comment_count": {"type": "integer"},
                "is_interested": {"type": "boolean"},
                "has_attended": {"type": "boolean"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "models.Comment": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "post_id": {"type": "integer"},
                "author_id": {"type": "integer"},
                "author": {"$ref": "#/definitions/models.User"},
                "content": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "models.Chat": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "post_id": {"type": "integer"},
                "group_name": {"type": "string"},
                "last_message_id": {"type": "integer"},
                "last_message": {"$ref": "#/definitions/models.Message"},
                "participants": {"type": "array", "items": {"$ref": "#/definitions/models.User"}},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "models.Message": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "chat_id": {"type": "integer"},
                "sender_id": {"type": "integer"},
                "sender": {"$ref": "#/definitions/models.User"},
                "type": {"type": "string", "enum": ["text", "image", "video"]},
                "content": {"type": "string"},
                "media_url": {"type": "string"},
                "read_by": {"type": "array", "items": {"type": "integer"}},
                "created_at": {"type": "string"}
            }
        },
        "models.Notification": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "recipient_id": {"type": "integer"},
                "sender_id": {"type": "integer"},
                "sender": {"$ref": "#/definitions/models.User"},
                "type": {"type": "string"},
                "message": {"type": "string"},
                "related_entity_id": {"type": "integer"},
                "is_read": {"type": "boolean"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "server.msgResponse": {
            "type": "object",
            "properties": {"msg": {"type": "string"}}
        },
        "server.postRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "isEvent": {"type": "boolean"},
                "eventDateTime": {"type": "string"},
                "location": {"type": "string"},
                "clearExistingMedia": {"type": "boolean"}
            }
        },
        "service.ConfirmRegistrationInput": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "otp": {"type": "string"},
                "username": {"type": "string"},
                "password": {"type": "string"},
                "userType": {"type": "string", "enum": ["personal", "corporate"]}
            }
        },
        "service.AuthResult": {
            "type": "object",
            "properties": {"token": {"type": "string"}, "user": {"$ref": "#/definitions/models.User"}}
        },
        "service.StoredMedia": {
            "type": "object",
            "properties": {"mediaUrl": {"type": "string"}, "type": {"type": "string"}, "contentType": {"type": "string"}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8375",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "eventsocial API",
	Description:      "Social events API: posts and events, interest and attendance, follows, comments, notifications and per-event group chat.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
