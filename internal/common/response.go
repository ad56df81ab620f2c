// Package common holds the JSON envelope shared by HTTP handlers.
package common

import "github.com/gin-gonic/gin"

// OK writes {"code":0,"message":"ok","data":data}.
func OK(c *gin.Context, data any) {
	c.JSON(200, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

// Fail writes an error envelope. code is an application code, not the HTTP status.
func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

// Abort is Fail for middleware: handlers after it do not run.
func Abort(c *gin.Context, httpStatus int, code int, msg string) {
	Fail(c, httpStatus, code, msg)
	c.Abort()
}
