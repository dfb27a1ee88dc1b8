// Package httputil provides the JSON request and response helpers and the
// generic HTTP middleware shared by the portal's handlers.
//
// # Responses
//
// Every API error body has the shape {"error": "..."} with an optional
// "details" list of field errors:
//
//	httputil.WriteSuccess(w, map[string]interface{}{"organizations": list})
//	httputil.WriteBadRequest(w, "Invalid role")
//	httputil.WriteValidationErrors(w, "Invalid input data", details)
//	httputil.WriteInternalError(w) // the cause is logged, never returned
//
// # Requests
//
//	var req createOrganizationRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 400 already written
//	}
//
// # Middleware
//
//	router.Use(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//	)
package httputil
