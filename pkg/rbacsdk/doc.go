/*
Package rbacsdk is a Go client for the gatekeeper RBAC service.

It carries the request and response types used on the wire, so the server
and its callers share one definition, and a Client that speaks the API:

	c := rbacsdk.NewClient("http://localhost:8080")

	// One-time setup. The token is only needed when BOOTSTRAP_TOKEN is set.
	_, err := c.InitSuperAdmin(ctx, bootstrapToken, rbacsdk.SuperAdminInitRequest{
		Email:    "root@example.com",
		Name:     "Root",
		Password: "correct horse battery",
	})

	sess, err := c.Login(ctx, "root@example.com", "correct horse battery")
	me, err := sess.Me(ctx)

Errors returned by the server are *APIError values; use errors.As to read
the HTTP status and error code:

	var apiErr *rbacsdk.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
		// the actor's role may not do this
	}

Sessions hold a bearer token and are safe for concurrent use. There is no
refresh flow: when the token expires, log in again.
*/
package rbacsdk
