// Package cli provides the interactive promoclaim console.
//
// It manages the account roster (add, enroll, list, remove, enable,
// disable), runs claim passes and shows the claim history and stored
// session lifetimes. App.Root starts the REPL and blocks until the user
// exits; App.Auto runs a single pass for unattended use.
package cli
