// Package commands defines the dappbridge operator CLI.
//
// Commands
//
//   - session new      Register a session and print its surface URL
//   - session close    Tear a session down
//   - login            Attach an account to a session
//   - requests         List pending requests
//   - resolve          Answer a request with a JSON result
//   - reject           Answer a request with an error message
//   - watch            Connect as a surface and print the responses
//   - key              Offline key tools (address, encrypt, decrypt)
//
// The host URL comes from --server or DAPPBRIDGE_SERVER, and the operator
// token from --token or DAPPBRIDGE_TOKEN.
package commands
