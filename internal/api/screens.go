// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"net/http"

	"github.com/taibuivan/profilegate/internal/platform/ctxutil"
	"github.com/taibuivan/profilegate/internal/platform/respond"
)

type screenResponse struct {
	Screen    string `json:"screen"`
	AccountID string `json:"account_id"`
}

// screen answers for a route that passed its gates.
func screen(name string) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		response := screenResponse{Screen: name}
		if claims := ctxutil.GetAuthUser(request.Context()); claims != nil {
			response.AccountID = claims.UserID
		}
		respond.OK(writer, response)
	}
}
