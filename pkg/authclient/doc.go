// Package authclient is an HTTP client for the portal and its
// authentication endpoints.
//
// State-changing requests need the framework's CSRF token in the
// x-keyloom-csrf header. The client fetches it from /api/auth/csrf, keeps
// it for DefaultCSRFTTL, and drops it whenever a response is 403 so the
// next request fetches a fresh one. Cookies, including the session cookie,
// live in the client's cookie jar.
//
//	c, err := authclient.New("https://portal.example.com")
//	if err != nil {
//		return err
//	}
//	if err := c.SignIn(ctx, email, password); err != nil {
//		return err
//	}
//	created, err := c.CreateOrganization(ctx, orgs.CreateOrgRequest{Name: "Acme"})
package authclient
