/*
Package config loads shelf's configuration file and turns it into the value
configs the engine, monitor and journal take.

	            +-------------+
	            |   Config    |
	            |   (file)    |
	            +------+------+
	                   |
	      +------------+------------+
	      |            |            |
	+-----+----+ +-----+----+ +-----+----+
	|   YAML   | |   HCL    | |   JSON   |
	|  Parser  | |  Parser  | |  Parser  |
	+----------+ +----------+ +----------+
	                   |
	          Validate (defaults,
	          rule compilation)
	                   |
	      +------------+------------+
	      |            |            |
	 engine.Config monitor.Config journal.Store

🎯 Purpose:
- Picks a parser by file extension; unknown keys are errors in every format
- Resolves ~ and config-relative paths
- Compiles rules at load so a bad pattern never reaches a run
- Defaults the config and journal locations to the XDG directories

🔍 Example:

	cfg, err := config.Load(ctx, config.DefaultPath())
	if err != nil {
		return err
	}
	ecfg, err := cfg.Engine()
	if err != nil {
		return err
	}
	store, err := cfg.OpenJournal(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	eng, err := engine.New(ctx, ecfg, store)

A minimal YAML file:

	source: ~/Downloads
	target: ~/Organized
	rules:
	  - id: invoices
	    name_pattern: "^invoice"
	    category: "Finance/Invoices/{year}"
	monitor:
	  debounce: 5s

The same in HCL:

	source = "${home}/Downloads"
	target = "${home}/Organized"

	rule "invoices" {
	  name_pattern = "^invoice"
	  category     = "Finance/Invoices/{year}"
	}

	monitor {
	  debounce = "5s"
	}
*/
package config
