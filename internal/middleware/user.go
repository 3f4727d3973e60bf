package middleware

import (
	"log"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const userIDKey = "user_id"

// EnsureUser 匿名用户标识中间件
// 第一次访问时给会话分配一个 uuid，之后点赞/评分/评论都挂在它名下；
// 没有账号体系，标识只用于把交互归到同一个访客
func EnsureUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)

		if v := session.Get(userIDKey); v != nil {
			if id, ok := v.(string); ok && id != "" {
				c.Set(userIDKey, id)
				c.Next()
				return
			}
		}

		id := uuid.NewString()
		session.Set(userIDKey, id)
		if err := session.Save(); err != nil {
			log.Printf("[User] 保存会话失败: %v", err)
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

// GetUserID 从请求上下文取访客标识
func GetUserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
