package router

import (
	"fmt"
	"net/http"
)

func registerSwaggerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/", http.StatusMovedPermanently)
	})

	mux.HandleFunc("/swagger/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, swaggerHTML, "/swagger/openapi.json")
	})

	mux.HandleFunc("/swagger/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(openAPI))
	})
}

const swaggerHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Membership Payments API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function() {
      window.ui = SwaggerUIBundle({
        url: "%s",
        dom_id: "#swagger-ui"
      });
    };
  </script>
</body>
</html>`

const openAPI = `{
  "openapi": "3.0.3",
  "info": {
    "title": "Membership Payments API",
    "version": "1.0.0"
  },
  "components": {
    "securitySchemes": {
      "basicAuth": {
        "type": "http",
        "scheme": "basic"
      }
    }
  },
  "paths": {
    "/memberships/intents": {
      "post": {
        "summary": "Create a payment intent for a membership tier",
        "requestBody": {
          "required": true,
          "content": {
            "multipart/form-data": {
              "schema": {
                "type": "object",
                "required": ["fullname", "email", "phone", "membership", "image"],
                "properties": {
                  "fullname": {"type": "string"},
                  "email": {"type": "string", "format": "email"},
                  "phone": {"type": "string"},
                  "membership": {"type": "string", "example": "Corporate Membership"},
                  "amount": {"type": "string", "description": "Advisory only, never charged"},
                  "provider": {"type": "string", "enum": ["paystack", "flutterwave", "stripe"]},
                  "image": {"type": "string", "format": "binary"}
                }
              }
            }
          }
        },
        "responses": {
          "201": {"description": "Intent created with a provider redirect URL"},
          "400": {"description": "Validation failed"},
          "502": {"description": "Payment provider unavailable, intent left pending"}
        }
      }
    },
    "/payments/verify": {
      "get": {
        "summary": "Verify a payment after the provider redirect",
        "parameters": [
          {"name": "reference", "in": "query", "schema": {"type": "string"}},
          {"name": "tx_ref", "in": "query", "schema": {"type": "string"}},
          {"name": "trxref", "in": "query", "schema": {"type": "string"}},
          {"name": "transaction_id", "in": "query", "schema": {"type": "string"}},
          {"name": "session_id", "in": "query", "schema": {"type": "string"}}
        ],
        "responses": {
          "200": {"description": "Current reconciliation outcome"},
          "404": {"description": "Unknown reference"},
          "422": {"description": "Amount, currency or reference mismatch"},
          "502": {"description": "Payment provider unavailable"}
        }
      }
    },
    "/payments/{provider}/webhook": {
      "post": {
        "summary": "Receive a provider webhook",
        "parameters": [
          {"name": "provider", "in": "path", "required": true, "schema": {"type": "string"}}
        ],
        "responses": {
          "200": {"description": "Delivery reconciled"},
          "401": {"description": "Signature rejected"}
        }
      }
    },
    "/members": {
      "get": {
        "summary": "List verified members, newest first",
        "security": [{"basicAuth": []}],
        "parameters": [
          {"name": "limit", "in": "query", "schema": {"type": "integer"}},
          {"name": "offset", "in": "query", "schema": {"type": "integer"}}
        ],
        "responses": {"200": {"description": "Members"}}
      }
    },
    "/members/lookup": {
      "get": {
        "summary": "Find memberships by email",
        "security": [{"basicAuth": []}],
        "parameters": [
          {"name": "email", "in": "query", "required": true, "schema": {"type": "string"}}
        ],
        "responses": {
          "200": {"description": "Memberships for the email"},
          "404": {"description": "No membership"}
        }
      }
    }
  }
}`
