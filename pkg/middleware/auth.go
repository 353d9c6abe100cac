package middleware

import (
	"github.com/Suhaibinator/SLine/pkg/common"
	"github.com/Suhaibinator/SLine/pkg/scontext"
)

// AuthenticatedFlag is the context flag set by Authentication when a message is accepted.
const AuthenticatedFlag = "authenticated"

// AuthFunc decides whether a message is authenticated.
type AuthFunc func(req *common.Request) bool

// RequireAuthorized fails messages arriving on connections whose peer was not verified
// by the transport. Use it on routes that need a client certificate when the server
// itself accepts unverified peers.
func RequireAuthorized() common.HandlerFunc {
	return func(req *common.Request, res *common.Response) common.Result {
		if req.Conn == nil || !req.Conn.Authorized() {
			return common.Fail(common.NewError(common.KindUnauthorized, "authorize", common.ErrUnauthorized))
		}
		return common.Next()
	}
}

// Authentication checks each message with authFunc.
// Accepted messages get AuthenticatedFlag set in their context; rejected ones fail
// with a KindUnauthorized error.
func Authentication(authFunc AuthFunc) common.HandlerFunc {
	if authFunc == nil {
		panic("middleware: Authentication requires an AuthFunc")
	}
	return func(req *common.Request, res *common.Response) common.Result {
		if !authFunc(req) {
			return common.Fail(common.NewError(common.KindUnauthorized, "authenticate", common.ErrUnauthorized))
		}
		req.SetContext(scontext.WithFlag(req.Context(), AuthenticatedFlag, true))
		return common.Next()
	}
}

// TokenAuthentication accepts decoded messages whose field holds one of validTokens.
// It expects a codec parser earlier in the pipeline so the body is a map.
func TokenAuthentication(field string, validTokens map[string]bool) common.HandlerFunc {
	return Authentication(func(req *common.Request) bool {
		body, ok := req.Body.(map[string]any)
		if !ok {
			return false
		}
		token, _ := body[field].(string)
		return token != "" && validTokens[token]
	})
}
