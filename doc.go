// Package apismith builds HTTP API clients that return mapped, typed results.
//
// A Client owns the layered configuration of one API (base URL, endpoint,
// default headers, query and body) and runs each call through the same
// pipeline:
//
//   - merge the base query/body/headers with per-request extras
//   - join base URL, endpoint and path
//   - send with retries, rate limiting, caching and de-duplication
//   - decode the body, run the response checker
//   - unpack the response container and apply the transform
//
// Transforms are usually smash schemas, which turn loosely keyed payloads
// into instances with renamed and coerced properties:
//
//	user := smash.NewSchema("User").
//	    MustDeclareProperty("id", smash.WithTransformer("int")).
//	    MustDeclareProperty("name", smash.From("full_name"))
//
//	client := apismith.New(
//	    apismith.WithBaseURL("https://api.example.com"),
//	    apismith.WithEndpoint("v1"),
//	    apismith.WithResponseContainer("data"),
//	    apismith.WithMaxRetries(3),
//	    apismith.WithCache(time.Minute),
//	)
//	users, err := client.GetInstances(ctx, user, "users")
//
// Only network errors, 429 and 5xx responses are retried by default; override
// with WithRetryCondition or WithRetryPolicy. Logging is off until a Logger
// is provided (e.g. WithSimpleLogger) and debug flags are enabled.
package apismith
