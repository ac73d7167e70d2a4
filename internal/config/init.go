package config

import (
	"fmt"
	"os"
)

const exampleConfig = `# shelfbuilder site configuration
site:
  title: My Shelf
  description: Reading notes and study guides
  base_url: https://example.github.io
  author: ""
  # unsafe_html: true   # keep raw HTML blocks from Markdown

content:
  dir: ./content
  # source:             # sync content from a git repository before building
  #   url: https://github.com/example/notes.git
  #   branch: main
  #   auth: {type: token, token: ${GIT_TOKEN}}

listing:
  group_limit: 6
  description_limit: 80

output:
  dir: ./public
  clean: true
  verify: true

serve:
  port: 8080
  metrics: false

# daemon: {interval: 15m, workers: 2, queue_size: 16, history: 50, admin_port: 8081}
# events: {nats_url: nats://localhost:4222, subject: shelfbuilder.builds}
# state:  {path: ./shelfbuilder.db}
`

// Init writes a commented starter configuration. An existing file is only
// replaced when force is set.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config %s already exists (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", configPath, err)
	}
	return nil
}
