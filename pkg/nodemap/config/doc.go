/*
Package config loads nodemap settings.

Config wraps a map[string]any and provides typed accessors that return a
default when a key is missing or holds the wrong type. Nested sections are
reached with Sub:

	cfg, err := config.FromFile("nodemap.yaml")
	if err != nil {
	    return err
	}
	delay := cfg.Sub("canvas").Duration("autosave_delay", time.Second)

Load resolves the full Settings used by the binaries. Values come from the
built-in defaults, then the optional YAML or JSON file, then the
environment (after any dotenv files are loaded):

	NODEMAP_REMOTE_BASE_URL   remote.base_url
	NODEMAP_REMOTE_TIMEOUT    remote.timeout
	NODEMAP_CREDENTIAL_FILE   session.credential_file
	NODEMAP_LOG_LEVEL         log.level
	NODEMAP_LOG_FILE          log.file
	NODEMAP_SERVER_ADDR       server.addr
	NODEMAP_TOKEN_TTL         server.token_ttl
	DATABASE_URL              server.database
	JWT_SECRET_KEY            server.jwt_secret

Durations accept Go duration strings ("10s") or a number of seconds.
*/
package config
