package server

import (
	"eventsocial/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetChats handles GET /api/chat
// @Summary List the caller's event chats
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Chat
// @Router /chat [get]
func (s *Server) GetChats(c *fiber.Ctx) error {
	chats, err := s.chatService.ListChats(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(chats)
}

// GetChatByPost handles GET /api/chat/post/:postId
// @Summary Get the chat of an event post
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} models.Chat
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /chat/post/{postId} [get]
func (s *Server) GetChatByPost(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}
	chat, err := s.chatService.GetChatByPost(c.UserContext(), postID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(chat)
}

// GetMessages handles GET /api/chat/:chatId/messages
// @Summary List chat messages, oldest first
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param chatId path int true "Chat ID"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.Message
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /chat/{chatId}/messages [get]
func (s *Server) GetMessages(c *fiber.Ctx) error {
	chatID, err := parseID(c, "chatId")
	if err != nil {
		return nil
	}
	page := parsePagination(c)

	messages, err := s.chatService.GetMessages(c.UserContext(), chatID, currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(messages)
}

// JoinChat handles POST /api/chat/join/:postId and POST /api/posts/:postId/join-interest-group
// @Summary Join the chat of an event post
// @Description Creates the chat on first join. Joining an upcoming event also marks interest.
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} object{msg=string,chat=models.Chat}
// @Failure 404 {object} models.ErrorResponse
// @Router /chat/join/{postId} [post]
func (s *Server) JoinChat(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}
	chat, err := s.chatService.JoinPostChat(c.UserContext(), postID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"msg": "Joined interest group", "chat": chat})
}

// MarkChatRead handles POST /api/chat/:chatId/read
// @Summary Mark every message in a chat as read
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param chatId path int true "Chat ID"
// @Success 200 {object} object{msg=string,updated=int}
// @Failure 403 {object} models.ErrorResponse
// @Router /chat/{chatId}/read [post]
func (s *Server) MarkChatRead(c *fiber.Ctx) error {
	chatID, err := parseID(c, "chatId")
	if err != nil {
		return nil
	}
	n, err := s.chatService.MarkRead(c.UserContext(), chatID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"msg": "Messages marked as read.", "updated": n})
}

// UploadChatMedia handles POST /api/chat/:chatId/media
// @Summary Upload an image or video for a chat message
// @Description Returns a mediaUrl to send with a sendMessage event
// @Tags chat
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param chatId path int true "Chat ID"
// @Param file formData file true "Image or video"
// @Success 201 {object} service.StoredMedia
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /chat/{chatId}/media [post]
func (s *Server) UploadChatMedia(c *fiber.Ctx) error {
	chatID, err := parseID(c, "chatId")
	if err != nil {
		return nil
	}
	file, err := formFile(c, "file")
	if err != nil {
		return respondError(c, err)
	}
	if file == nil {
		return respondError(c, models.NewValidationError("file is required"))
	}

	stored, err := s.chatService.UploadMedia(c.UserContext(), chatID, currentUserID(c), *file)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(stored)
}
