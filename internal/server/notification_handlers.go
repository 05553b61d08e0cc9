package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications
// @Summary List the caller's notifications, newest first
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Notification
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	page := parsePagination(c)
	items, err := s.notificationService.List(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(items)
}

// GetUnreadCount handles GET /api/notifications/unread-count
// @Summary Count unread notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{count=int}
// @Router /notifications/unread-count [get]
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	n, err := s.notificationService.UnreadCount(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"count": n})
}

// MarkNotificationRead handles PUT /api/notifications/:notificationId/read
// @Summary Mark a notification as read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param notificationId path int true "Notification ID"
// @Success 200 {object} object{msg=string,notification=models.Notification}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /notifications/{notificationId}/read [put]
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := parseID(c, "notificationId")
	if err != nil {
		return nil
	}
	n, err := s.notificationService.MarkRead(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"msg": "Notification marked as read.", "notification": n})
}

// MarkAllNotificationsRead handles PUT /api/notifications/read-all
// @Summary Mark every notification as read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{msg=string,updated=int}
// @Router /notifications/read-all [put]
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	n, err := s.notificationService.MarkAllRead(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"msg": "All notifications marked as read.", "updated": n})
}

// DeleteNotification handles DELETE /api/notifications/:notificationId
// @Summary Delete a notification
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param notificationId path int true "Notification ID"
// @Success 200 {object} object{msg=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /notifications/{notificationId} [delete]
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	id, err := parseID(c, "notificationId")
	if err != nil {
		return nil
	}
	if err := s.notificationService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(message("Notification deleted."))
}
