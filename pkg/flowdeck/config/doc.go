/*
Package config holds the two configuration layers of flowdeck.

# Node data

Config wraps a map[string]any and exposes typed accessors that fall back to
a default when a key is missing or has the wrong type. Canvas nodes carry
their settings in such an untyped bag; the flowdeck package decodes each bag
into a typed node configuration through these accessors:

	data := config.New(map[string]any{
	    "prompt":      "Translate to French",
	    "temperature": 0.2,
	})

	prompt := data.String("prompt", "")          // "Translate to French"
	temp := data.Float("temperature", 0.7)       // 0.2
	tokens := data.Int("maxTokens", 2048)        // 2048

Numbers decoded with json.Decoder.UseNumber arrive as json.Number and are
accepted by Int and Float. Merge overlays a partial patch on an existing bag,
which is how node updates are applied.

# Service settings

Settings is the process configuration for the flowdeck server. Load reads an
optional YAML file, then a .env file, then FLOWDECK_* environment variables,
and validates the result:

	settings, err := config.Load("flowdeck.yaml")
	if err != nil {
	    log.Fatal(err)
	}

# Thread Safety

Config is safe for concurrent reads. Merge returns a new Config and never
modifies its receiver.
*/
package config
