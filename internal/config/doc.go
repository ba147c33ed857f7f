// Package config handles configuration loading for hearth-tenant.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from HEARTH_CONFIG environment variable
//  2. ./config.yaml (current directory)
//  3. ~/.config/hearth/tenant.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  sso_secret: "${HEARTH_SSO_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  lockout_duration: "15m"
//	  session_timeout: "24h"
//	  invitation_expiry: "168h"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Database and sessions:
//
//	database:
//	  path: "/var/lib/hearth/tenant.db"
//	sessions:
//	  dir: "/var/lib/hearth/sessions"
//
// Tenant mode and seeded accounts:
//
//	tenant:
//	  enabled: true
//	  auto_migration: true
//	  default_tenant_name: "Default Organization"
//	  default_tenant_domain: ""
//	  make_first_user_admin: true
//	  super_admin:
//	    username: "superadmin"
//	    email: "superadmin@example.com"
//	    password: "${HEARTH_SUPERADMIN_PASSWORD}"
//
// Authentication enforcement:
//
//	auth:
//	  password_min_length: 8
//	  max_failed_logins: 5        # 0 disables lockout
//	  lockout_duration: "15m"
//	  session_timeout: "24h"
//	  invitation_expiry: "168h"
//	  sso_secret: "${HEARTH_SSO_SECRET}"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Password minimum length is at least 4
//   - Session timeout is at least 1h
//   - Invitation expiry is at least 24h
//   - Duration format validity
//   - Database path and session dir are set
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/hearth/tenant.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
