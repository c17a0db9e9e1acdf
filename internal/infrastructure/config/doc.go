// Package config handles loading and validating HubLink configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The hub access token should be set via HUBLINK_HUB_ACCESS_TOKEN
//   - The config file should have restricted permissions (0600)
//
// Runtime transport preferences (local hub address, local commands flag) start
// from this configuration but are owned afterwards by transport.Settings, which
// the hub may update at any time.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Hub.AppID)
package config
