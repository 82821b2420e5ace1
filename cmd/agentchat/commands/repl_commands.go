package commands

import "strings"

const helpText = `Chat commands:
  /help                    Show this message
  /exit                    Quit
  /new                     Start a new session
  /sessions [all]          List sessions (all includes archived)
  /switch <n|id|title>     Switch to a session by list number, id or title
  /rename <title>          Rename the current session
  /archive                 Archive the current session
  /unarchive               Restore the current session
  /delete                  Delete the current session
  /memory [on|off]         Show or set whether the agent remembers the session
  /folder                  List folders
  /folder new <name>       Create a folder
  /folder move <id|none>   Move the current session into a folder, or out of it
  /attach <path|glob>      Attach files to the next message
End a line with \ to continue the message on the next line.`

type commandResult struct {
	Type string
	Args []string
	Val  string
}

func parseCommand(input string) commandResult {
	trimmed := strings.TrimPrefix(strings.TrimSpace(input), "/")
	parts := strings.Fields(trimmed)
	if len(parts) == 0 {
		return commandResult{Type: "unknown", Val: input}
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, parts[0]))
	switch parts[0] {
	case "exit", "quit", "q":
		return commandResult{Type: "exit"}
	case "help", "?":
		return commandResult{Type: "help"}
	case "new":
		return commandResult{Type: "new"}
	case "sessions", "ls":
		return commandResult{Type: "sessions", Args: parts[1:]}
	case "switch":
		return commandResult{Type: "switch", Args: parts[1:], Val: rest}
	case "rename", "title":
		return commandResult{Type: "rename", Val: rest}
	case "archive":
		return commandResult{Type: "archive"}
	case "unarchive":
		return commandResult{Type: "unarchive"}
	case "delete", "rm":
		return commandResult{Type: "delete"}
	case "memory":
		return commandResult{Type: "memory", Args: parts[1:]}
	case "folder", "folders":
		return commandResult{Type: "folder", Args: parts[1:], Val: rest}
	case "attach":
		return commandResult{Type: "attach", Val: rest}
	default:
		return commandResult{Type: "unknown", Val: input}
	}
}

// parseToggle reads on/off style arguments.
func parseToggle(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1":
		return true, true
	case "off", "false", "no", "0":
		return false, true
	}
	return false, false
}
