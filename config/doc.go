// Package config loads and validates the YAML runtime configuration.
//
// A configuration declares onramps, offramps, pipelines and the bindings
// that connect them:
//
//	onramps:
//	  - id: ingest
//	    type: http
//	    codec: json
//	    preprocessors: [lines]
//	    config:
//	      port: 8000
//	pipelines:
//	  - id: main
//	    nodes:
//	      - id: wal
//	        op: generic::wal
//	        on_error: fail
//	        config:
//	          path: ./wal
//	offramps:
//	  - id: out
//	    type: stdout
//	bindings:
//	  - from: /onramp/ingest/01/out
//	    to: [/pipeline/main/01/in]
//	  - from: /pipeline/main/01/out
//	    to: [/offramp/out/01/in]
//	metrics:
//	  enabled: true
//	  port: 9898
//
// Unknown keys are rejected at every level. The per-type "config" sections
// are kept as yaml.Node and decoded by the owning factory with DecodeStrict,
// so each artefact type defines and validates its own schema.
//
// # Loading
//
//	cfg, err := config.Load("tremor.yaml")
//
// Multiple files can be layered with Loader.AddLayer; later layers override
// earlier ones map key by map key. Environment variables TREMOR_METRICS_ENABLED,
// TREMOR_METRICS_PORT and TREMOR_METRICS_PATH override the metrics section.
//
// Every error returned by this package wraps errors.ErrConfig.
package config
