package config // package config loads application configuration from environment variables

import (
	"log"	  // log is used to report configuration errors and halt execution
	"os"	  // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.	 Rule values (grace minutes, offer minutes, ...)
// are only the boot defaults: once seeded into the settings table they are
// editable at runtime through the admin rules endpoint.
type Config struct {
	Env				 string // application environment (e.g. "dev", "prod")
	Port			 string // HTTP port to listen on
	DBUser			 string // database username
	DBPass			 string // database password (optional)
	DBHost			 string // database host address
	DBPort			 string // database port number
	DBName			 string // database name
	JWTSecret		 string // secret used to verify externally issued JWTs
	GraceMinutes	 int	// default grace period before an unconfirmed hold releases
	OfferMinutes	 int	// default offer window for waitlist promotions
	ExtensionMinutes int	// default grace-extension duration
	MiddayMaxHours	 int	// default maximum temp-away duration
	BcryptCost		 int	// bcrypt cost for guest access codes
}

// Load reads configuration values from environment variables and returns a
// Config.	Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:			  must("APP_ENV"),
		Port:			  must("APP_PORT"),
		DBUser:			  must("DB_USER"),
		DBPass:			  os.Getenv("DB_PASS"), // empty allowed
		DBHost:			  must("DB_HOST"),
		DBPort:			  must("DB_PORT"),
		DBName:			  must("DB_NAME"),
		JWTSecret:		  must("JWT_SECRET"),
		GraceMinutes:	  intOr("GRACE_MINUTES", 20),
		OfferMinutes:	  intOr("OFFER_MINUTES", 10),
		ExtensionMinutes: intOr("EXTENSION_MINUTES", 15),
		MiddayMaxHours:	  intOr("MIDDAY_MAX_HOURS", 3),
		BcryptCost:		  intOr("BCRYPT_COST", 10),
	}
}

// must retrieves the value of a required environment variable.	 If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// intOr retrieves an integer environment variable, returning the default
// when the variable is unset.	A malformed value is fatal rather than
// silently ignored.
func intOr(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
