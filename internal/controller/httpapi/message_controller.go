package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MessageController struct {
	messenger Messenger
	logger    *zap.Logger
}

func NewMessageController(messenger Messenger, logger *zap.Logger) *MessageController {
	return &MessageController{messenger: messenger, logger: logger}
}

func (mc *MessageController) Send(c *gin.Context) {
	type sendRequest struct {
		ToID string `json:"toId"`
		Text string `json:"text"`
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	msg, err := mc.messenger.Send(c.Request.Context(), sessionFrom(c), req.ToID, req.Text)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// ClearThread deletes the messages the teacher exchanged with a student.
func (mc *MessageController) ClearThread(c *gin.Context) {
	threadID := mc.messenger.ThreadWith(sessionFrom(c), c.Param("studentId"))

	n, err := mc.messenger.ClearThread(c.Request.Context(), threadID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"threadId": threadID, "deleted": n})
}
