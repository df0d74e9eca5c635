package hardening

import (
	"strings"
	"testing"
)

func prodOptions() Options {
	return Options{
		Service:            "api",
		Environment:        "production",
		DatabaseRequireTLS: "true",
		RedisAddr:          "redis.internal:6379",
		RedisRequireTLS:    "true",
		CORSAllowedOrigins: "https://app.example.com",
		RequiredSecrets:    []EnvRequirement{{Name: "AUTH_SECRET", Value: "s3cret"}},
	}
}

func TestValidateProductionPasses(t *testing.T) {
	if err := ValidateProduction(prodOptions()); err != nil {
		t.Fatalf("valid production config rejected: %v", err)
	}
}

func TestDevelopmentSkipsChecks(t *testing.T) {
	o := Options{Environment: "development"}
	if err := ValidateProduction(o); err != nil {
		t.Fatalf("development must pass untouched: %v", err)
	}
}

func TestStrictModeOptOut(t *testing.T) {
	o := Options{Environment: "production", StrictProdSecurity: "false"}
	if err := ValidateProduction(o); err != nil {
		t.Fatalf("explicit opt-out must pass: %v", err)
	}
}

func TestProductionRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Options)
		want   string
	}{
		{"db tls", func(o *Options) { o.DatabaseRequireTLS = "" }, "DATABASE_REQUIRE_TLS"},
		{"redis tls", func(o *Options) { o.RedisRequireTLS = "" }, "REDIS_REQUIRE_TLS"},
		{"redis insecure tls", func(o *Options) { o.RedisTLSInsecure = "true" }, "REDIS_TLS_INSECURE"},
		{"redis insecure tls opt-in", func(o *Options) { o.RedisAllowInsecureTLS = "true" }, "REDIS_ALLOW_INSECURE_TLS"},
		{"cors wildcard", func(o *Options) { o.CORSAllowedOrigins = "*" }, "wildcard"},
		{"cors localhost", func(o *Options) { o.CORSAllowedOrigins = "http://localhost:3000" }, "localhost"},
		{"cors empty", func(o *Options) { o.CORSAllowedOrigins = "" }, "CORS_ALLOWED_ORIGINS"},
		{"missing secret", func(o *Options) { o.RequiredSecrets[0].Value = "  " }, "AUTH_SECRET"},
	}
	for _, c := range cases {
		o := prodOptions()
		c.mutate(&o)
		err := ValidateProduction(o)
		if err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
		if !strings.Contains(err.Error(), c.want) {
			t.Fatalf("%s: error %q does not mention %q", c.name, err, c.want)
		}
	}
}

func TestNoRedisSkipsRedisTLS(t *testing.T) {
	o := prodOptions()
	o.RedisAddr = ""
	o.RedisRequireTLS = ""
	if err := ValidateProduction(o); err != nil {
		t.Fatalf("absent redis must not require redis TLS: %v", err)
	}
}

func TestIsProductionLikeEnv(t *testing.T) {
	for _, env := range []string{"prod", "Production", " staging ", "stage"} {
		if !IsProductionLikeEnv(env) {
			t.Fatalf("%q must be production-like", env)
		}
	}
	for _, env := range []string{"", "dev", "development", "test", "local"} {
		if IsProductionLikeEnv(env) {
			t.Fatalf("%q must not be production-like", env)
		}
	}
}
