// Package commands defines the ecgview CLI.
//
// Commands
//
//   - upload     Render an exam on the server and save the PNG
//   - summary    Print exam metadata as JSON
//   - discover   Find a server on the local network
//
// The server comes from --server, then ECGVIEW_SERVER_URL, and failing both
// from a UDP discovery probe.
package commands
