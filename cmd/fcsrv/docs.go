package main

// General API documentation for swaggo. Run `swag init -g cmd/fcsrv/docs.go -o docs` to regenerate.
//
// @title           fcsrv API
// @version         1.0
// @description     Image classification challenge solver with local ONNX inference and remote fallback providers.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http https
