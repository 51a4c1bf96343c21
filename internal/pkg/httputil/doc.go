// Package httputil provides the JSON envelope helpers shared by the HTTP
// handlers.
//
// Every response is {"success": bool, ...}: successes carry "data" and an
// optional "message", failures carry "error". 5xx bodies never include the
// underlying error; it is logged instead.
package httputil
