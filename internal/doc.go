// Package internal holds the packages behind the kiln command.
//
// # Package Organization
//
// The compiler pipeline, in the order a .kiln file passes through it:
//
//   - lexer: finds html!{...} regions and turns their bodies into tokens
//   - parser: builds the ast from tokens, re-lexing braced blocks on demand
//   - directive: reads //kiln: comments that declare components, schemas and actions
//   - validate: structural, accessibility and argument rules over the tree
//   - css: scopes stylesheets and checks declaration syntax
//   - bind: checks form name attributes against a bound Go struct
//   - resolve: lowers component calls to props literals
//   - emit: writes the Go code that renders a template
//   - preprocess: runs the pipeline for one file
//
// Around the pipeline:
//
//   - registry: components known to the build and the dependency graph between files
//   - scanner: walks scan paths and fills the registry
//   - build: compiles files on a worker pool with a content-hash cache
//   - watcher: debounced fsnotify watching for incremental rebuilds
//   - livereload: development server and websocket reload hub
//   - config: viper configuration and its validation
//   - diag: diagnostics, source rendering and typed errors
//   - logging: slog-based structured logging
//   - scope, suggest, version: small helpers shared by the above
//
// Generated code depends only on the public runtime in pkg/kiln.
package internal
