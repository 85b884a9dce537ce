/*
Package config loads the daemon configuration: YAML file under flag
overrides, with working defaults for the public planet server.
*/
package config
