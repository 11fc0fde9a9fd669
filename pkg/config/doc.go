// Package config provides the spherekit configuration.
//
// Values are layered with koanf, lowest priority first:
//   - Default()
//   - ~/.config/spherekit/config.yaml (or the file passed to Load)
//   - command-line flags the user set explicitly (see BindFlags)
//
// clientId, projectId and serverUrl are required; deepLinkScheme is
// required only when platform is mobile. Validate reports every missing
// field at once as a *ConfigurationError.
//
// Example config.yaml:
//
//	clientId: my-game
//	projectId: my-project
//	serverUrl: https://api.sphere.example
//	loginTimeout: 10m
//	logLevel: debug
package config
