package websocket

// query parameters of a connection request; userId may come from the token instead
type ConnectParams struct {
	DocumentID  string `form:"documentId" binding:"required,max=256"`
	UserID      string `form:"userId" binding:"max=128"`
	DisplayName string `form:"displayName" binding:"max=100"`
	Token       string `form:"token"` // jwt token for authenticated users
}
