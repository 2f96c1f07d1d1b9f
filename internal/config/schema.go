package config

// jsonSchema is the JSON Schema validated against every configuration file
// before it is parsed into a Config. It is compiled once into a
// gojsonschema.Schema and reused for every validation.
const jsonSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["version", "identifier", "network", "security"],
	"properties": {
		"version": {"type": "string"},
		"identifier": {
			"type": "object",
			"required": ["persistence"],
			"properties": {
				"persistence": {"type": "string", "enum": ["ephemeral", "persistent"]},
				"value": {"type": "string"}
			}
		},
		"details": {
			"type": "object",
			"properties": {
				"name": {"type": "string"},
				"description": {"type": "string"},
				"location": {"type": "string"}
			}
		},
		"network": {
			"type": "object",
			"required": ["endpoints"],
			"properties": {
				"endpoints": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["protocol", "binding"],
						"properties": {
							"protocol": {"type": "string"},
							"interface": {"type": "string"},
							"binding": {"type": "string"},
							"bootstrap": {"type": "string"},
							"connection": {"$ref": "#/definitions/connection"}
						}
					}
				},
				"connection": {"$ref": "#/definitions/connection"},
				"token": {"type": "string"}
			}
		},
		"security": {
			"type": "object",
			"required": ["algorithms"],
			"properties": {
				"algorithms": {
					"type": "object",
					"additionalProperties": {
						"type": "object",
						"required": ["key_agreements", "ciphers", "hash_functions"],
						"properties": {
							"key_agreements": {"type": "array", "items": {"type": "string"}, "minItems": 1},
							"ciphers": {"type": "array", "items": {"type": "string"}, "minItems": 1},
							"hash_functions": {"type": "array", "items": {"type": "string"}, "minItems": 1}
						}
					}
				}
			}
		}
	},
	"definitions": {
		"connection": {
			"type": "object",
			"properties": {
				"timeout_ms": {"type": "integer"},
				"retry_limit": {"type": "integer"},
				"retry_interval_ms": {"type": "integer"}
			}
		}
	}
}`
