// ABOUTME: Entry point for the hearth-tenant admin CLI
// ABOUTME: Migration lifecycle, tenant provisioning, and invitation management

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/hearth/internal/auth"
	"github.com/2389/hearth/internal/config"
	"github.com/2389/hearth/internal/migration"
	"github.com/2389/hearth/internal/session"
	"github.com/2389/hearth/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _                     _   _
 | |__   ___  __ _ _ __| |_| |__
 | '_ \ / _ \/ _' | '__| __| '_ \
 | | | |  __/ (_| | |  | |_| | | |
 |_| |_|\___|\__,_|_|   \__|_| |_|
`

// getConfigPath returns the path to the tenant config file.
// Priority: HEARTH_CONFIG env var > XDG_CONFIG_HOME/hearth/tenant.yaml > ~/.config/hearth/tenant.yaml
func getConfigPath() string {
	if envPath := os.Getenv("HEARTH_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "tenant.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "hearth", "tenant.yaml")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "status":
		err = runStatus(ctx)
	case "migrate":
		err = runMigrate(ctx)
	case "verify":
		err = runVerify(ctx)
	case "create-tenant":
		err = runCreateTenant(ctx, args)
	case "invite":
		err = runInvite(ctx, args)
	case "users":
		err = runUsers(ctx, args)
	case "sso-token":
		err = runSSOToken(ctx, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n", version)
	fmt.Println()
	fmt.Println("Usage: hearth-tenant <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  status                  Show migration state and row counts")
	fmt.Println("  migrate                 Run the legacy migration (or seed a fresh install)")
	fmt.Println("  verify                  Compare legacy and migrated row counts")
	fmt.Println("  create-tenant           Create a tenant with its first admin")
	fmt.Println("  invite                  Create an invitation for a tenant")
	fmt.Println("  users --tenant <id>     List a tenant's users")
	fmt.Println("  sso-token --user <id>   Mint an SSO login token for a user")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  HEARTH_CONFIG           Config file path (default: ~/.config/hearth/tenant.yaml)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  hearth-tenant status")
	fmt.Println("  hearth-tenant migrate")
	fmt.Println("  hearth-tenant create-tenant --name 'Acme Corp' --domain acme.example.com \\")
	fmt.Println("      --admin-username alice --admin-email alice@acme.example.com --admin-password <pw>")
	fmt.Println("  hearth-tenant invite --tenant <id> --email bob@acme.example.com --role user")
	fmt.Println()
}

// app bundles everything a command needs after config load.
type app struct {
	cfg    *config.Config
	store  store.Store
	auth   *auth.Service
	engine *migration.Engine
}

func newApp() (*app, error) {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(setupLogger(cfg.Logging))

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	sessions, err := session.New(cfg.Sessions.Dir, cfg.Auth.SessionTimeout)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	svc := auth.NewService(st, sessions, auth.Config{
		PasswordMinLength: cfg.Auth.PasswordMinLength,
		MaxFailedLogins:   cfg.Auth.MaxFailedLogins,
		LockoutDuration:   cfg.Auth.LockoutDuration,
		InvitationExpiry:  cfg.Auth.InvitationExpiry,
	})

	engine := migration.NewEngine(st, migration.Config{
		DefaultTenantName:   cfg.Tenant.DefaultTenantName,
		DefaultTenantDomain: cfg.Tenant.DefaultTenantDomain,
		MakeFirstUserAdmin:  cfg.Tenant.MakeFirstUserAdmin,
		SuperAdmin:          seedAccount(cfg.Tenant.SuperAdmin),
		Admin:               seedAccount(cfg.Tenant.Admin),
		User:                seedAccount(cfg.Tenant.User),
	})

	return &app{cfg: cfg, store: st, auth: svc, engine: engine}, nil
}

func (a *app) Close() {
	a.store.Close()
}

func seedAccount(c config.SeedAccountConfig) migration.SeedAccount {
	return migration.SeedAccount{
		Username: c.Username,
		Email:    c.Email,
		Password: c.Password,
	}
}

func runStatus(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.engine.Status(ctx)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Migration Status")
	cyan.Println("  ----------------")

	switch report.State {
	case migration.StateMigrated:
		color.Green("  State:    %s", report.State)
	case migration.StateNeedsMigration:
		color.Yellow("  State:    %s", report.State)
	default:
		fmt.Printf("  State:    %s\n", report.State)
	}
	fmt.Printf("  Tenants:  %d\n", report.Counts.Tenants)
	fmt.Printf("  Users:    %d (legacy: %d)\n", report.Counts.TenantUsers, report.Counts.LegacyUsers)
	fmt.Printf("  %s\n", report.Message)
	fmt.Println()

	return nil
}

func runMigrate(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.engine.Run(ctx)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)

	switch report.Status {
	case migration.StatusSkipped:
		color.Yellow("Skipped: %s\n", report.Message)
		return nil
	case migration.StatusFailed:
		return fmt.Errorf("%s", report.Message)
	}

	if report.Tenant != nil {
		green.Printf("✓ Tenant: %s", report.Tenant.Name)
		if report.Tenant.Domain != "" {
			fmt.Printf(" (%s)", report.Tenant.Domain)
		}
		fmt.Printf("  [%s]\n", report.Tenant.ID)
	}
	green.Printf("✓ Migrated: ")
	fmt.Printf("%d user(s), %d conversation(s), %d settings row(s)\n",
		report.Migrated.Users, report.Migrated.Conversations, report.Migrated.Settings)

	for _, u := range report.Details.Users {
		fmt.Printf("    %-24s %s\n", u.Username, u.Role)
	}

	if report.Verify != nil {
		printVerify(report.Verify)
	}

	return nil
}

func runVerify(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.engine.Verify(ctx)
	if err != nil {
		return err
	}

	printVerify(report)

	if !report.AllMatch() {
		return fmt.Errorf("verification failed: row counts do not match")
	}
	return nil
}

func printVerify(report *migration.VerifyReport) {
	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Verification")
	cyan.Println("  ------------")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ENTITY\tORIGINAL\tMIGRATED\tMATCH")
	fmt.Fprintln(w, "  ------\t--------\t--------\t-----")
	rows := []struct {
		name  string
		check migration.EntityCheck
	}{
		{"users", report.Users},
		{"conversations", report.Conversations},
		{"settings", report.Settings},
	}
	for _, row := range rows {
		mark := "ok"
		if !row.check.Match {
			mark = "MISMATCH"
		}
		fmt.Fprintf(w, "  %s\t%d\t%d\t%s\n", row.name, row.check.Original, row.check.Migrated, mark)
	}
	w.Flush()
	fmt.Println()
}

func runCreateTenant(ctx context.Context, args []string) error {
	var name, domain, adminUsername, adminEmail, adminPassword string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--name", "-n":
			if i+1 < len(args) {
				name = args[i+1]
				i++
			}
		case "--domain", "-d":
			if i+1 < len(args) {
				domain = args[i+1]
				i++
			}
		case "--admin-username":
			if i+1 < len(args) {
				adminUsername = args[i+1]
				i++
			}
		case "--admin-email":
			if i+1 < len(args) {
				adminEmail = args[i+1]
				i++
			}
		case "--admin-password":
			if i+1 < len(args) {
				adminPassword = args[i+1]
				i++
			}
		}
	}

	if name == "" || adminUsername == "" || adminEmail == "" || adminPassword == "" {
		return fmt.Errorf("usage: create-tenant --name <name> [--domain <domain>] --admin-username <u> --admin-email <e> --admin-password <p>")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	tenant, admin, err := a.auth.CreateTenant(ctx, name, domain, adminUsername, adminEmail, adminPassword)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Created tenant: %s\n", tenant.ID)
	fmt.Printf("  Name:    %s\n", tenant.Name)
	if tenant.Domain != "" {
		fmt.Printf("  Domain:  %s\n", tenant.Domain)
	}
	fmt.Printf("  Admin:   %s (%s)\n", admin.Username, admin.Email)

	return nil
}

func runInvite(ctx context.Context, args []string) error {
	var tenantID, email, invitedBy string
	role := store.RoleUser

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--tenant", "-t":
			if i+1 < len(args) {
				tenantID = args[i+1]
				i++
			}
		case "--email", "-e":
			if i+1 < len(args) {
				email = args[i+1]
				i++
			}
		case "--role", "-r":
			if i+1 < len(args) {
				role = store.UserRole(args[i+1])
				i++
			}
		case "--invited-by":
			if i+1 < len(args) {
				invitedBy = args[i+1]
				i++
			}
		}
	}

	if tenantID == "" || email == "" {
		return fmt.Errorf("usage: invite --tenant <id> --email <email> [--role user|admin|super_admin] [--invited-by <user-id>]")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	inv, err := a.auth.InviteUser(ctx, tenantID, email, role, invitedBy)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Created invitation: %s\n", inv.ID)
	fmt.Printf("  Email:    %s\n", inv.Email)
	fmt.Printf("  Role:     %s\n", inv.Role)
	fmt.Printf("  Expires:  %s\n", inv.ExpiresAt.Format(time.RFC3339))
	fmt.Printf("  Token:    %s\n", inv.Token)

	return nil
}

func runUsers(ctx context.Context, args []string) error {
	var tenantID string
	includeInactive := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--tenant", "-t":
			if i+1 < len(args) {
				tenantID = args[i+1]
				i++
			}
		case "--all", "-a":
			includeInactive = true
		}
	}

	if tenantID == "" {
		return fmt.Errorf("usage: users --tenant <id> [--all]")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	users, err := a.auth.ListTenantUsers(ctx, tenantID, includeInactive)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Tenant Users")
	cyan.Println("  ------------")

	if len(users) == 0 {
		fmt.Println("  (no users)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  USERNAME\tEMAIL\tROLE\tACTIVE\tLAST LOGIN")
	fmt.Fprintln(w, "  --------\t-----\t----\t------\t----------")
	for _, u := range users {
		lastLogin := "-"
		if u.LastLogin != nil {
			lastLogin = u.LastLogin.Format("Jan 02 15:04")
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%t\t%s\n", u.Username, u.Email, u.Role, u.IsActive, lastLogin)
	}
	w.Flush()
	fmt.Println()

	return nil
}

func runSSOToken(ctx context.Context, args []string) error {
	var userID string
	ttl := time.Hour

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--user", "-u":
			if i+1 < len(args) {
				userID = args[i+1]
				i++
			}
		case "--ttl":
			if i+1 < len(args) {
				parsed, err := time.ParseDuration(args[i+1])
				if err != nil {
					return fmt.Errorf("parsing --ttl: %w", err)
				}
				ttl = parsed
				i++
			}
		}
	}

	if userID == "" {
		return fmt.Errorf("usage: sso-token --user <id> [--ttl <duration>]")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Auth.SSOSecret == "" {
		return fmt.Errorf("auth.sso_secret is not configured")
	}

	// Only mint tokens for subjects that can actually log in.
	user, err := a.auth.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	verifier := auth.NewSSOVerifier([]byte(a.cfg.Auth.SSOSecret))
	token, err := verifier.Generate(user.ID, ttl)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Minted SSO token for %s\n", user.Username)
	fmt.Printf("  Expires:  %s\n", time.Now().Add(ttl).Format(time.RFC3339))
	fmt.Printf("  Token:    %s\n", token)

	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
