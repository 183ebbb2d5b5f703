package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const dateLayout = "2006-01-02"

// peekBody reads the request body into out and restores it so the handler
// can bind it again.
func peekBody(ctx *gin.Context, out interface{}) error {
	raw, err := ctx.GetRawData()
	if err != nil {
		return err
	}
	ctx.Request.Body = io.NopCloser(bytes.NewBuffer(raw))
	return json.Unmarshal(raw, out)
}

// ValidateProject rejects project payloads with missing required fields or
// an end date earlier than the start date.
func ValidateProject() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			StartDate   string `json:"start_date"`
			EndDate     string `json:"end_date"`
			Status      string `json:"status"`
		}

		if err := peekBody(ctx, &body); err != nil {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body."})
			return
		}

		if body.Name == "" || body.Description == "" || body.StartDate == "" || body.Status == "" {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "The name, description, start date and status fields are required."})
			return
		}

		start, err := time.Parse(dateLayout, body.StartDate)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid start date."})
			return
		}

		if body.EndDate != "" {
			end, err := time.Parse(dateLayout, body.EndDate)
			if err != nil {
				ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid end date."})
				return
			}
			if end.Before(start) {
				ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "The end date cannot be earlier than the start date."})
				return
			}
		}

		ctx.Next()
	}
}

// ValidateCredentials checks the email/password fields shared by the
// registration and login payloads.
func ValidateCredentials() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}

		if err := peekBody(ctx, &body); err != nil {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body."})
			return
		}

		if len(body.Password) < 6 {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "The password must be at least 6 characters long."})
			return
		}

		if !emailPattern.MatchString(body.Email) {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid email."})
			return
		}

		ctx.Next()
	}
}
