// Package cli implements orgportalctl, a command line client for the org
// portal built on pkg/authclient.
//
// Commands that act as a user sign in with -email and -password (or the
// ORGPORTAL_EMAIL and ORGPORTAL_PASSWORD environment variables), perform
// one request, and sign out:
//
//	orgportalctl create-org -url https://portal.example.com -email ada@example.com -password ... -name "Acme Corp"
package cli
