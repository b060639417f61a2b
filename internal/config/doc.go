// Package config provides configuration loading and validation for the
// meetresume server and recorder. A single YAML file carries both sides;
// each subcommand validates only the sections it uses.
package config
