// cmd/build-readme renders README.md from README.md.tmpl and the registered slash commands.
package main

import (
	"bytes"
	"cmp"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/template"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/domme-music/internal/command"
	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/internal/discord"
	"github.com/keshon/domme-music/internal/version"
	"github.com/keshon/domme-music/pkg/cmd"
)

type CmdInfo struct {
	Name        string
	Description string
	Category    string
}

func main() {
	reg := cmd.NewRegistry()
	discord.RegisterCommands(reg, &config.Config{}, discord.Services{})

	tmplData, err := os.ReadFile("README.md.tmpl")
	if err != nil {
		panic(err)
	}
	out, err := render(string(tmplData), collect(reg))
	if err != nil {
		panic(err)
	}
	if err := os.WriteFile("README.md", out, 0644); err != nil {
		panic(err)
	}
}

// collect lists every command and subcommand, grouped by category.
func collect(reg *cmd.Registry) map[string][]CmdInfo {
	sections := make(map[string][]CmdInfo)
	for _, c := range reg.All() {
		root := cmd.Root(c)
		meta, ok := root.(command.DiscordMeta)
		if !ok {
			continue
		}
		sp, ok := root.(command.SlashProvider)
		if !ok {
			continue
		}
		def := sp.SlashDefinition()
		var subs int
		for _, o := range def.Options {
			if o.Type != discordgo.ApplicationCommandOptionSubCommand {
				continue
			}
			subs++
			sections[meta.Category()] = append(sections[meta.Category()], CmdInfo{
				Name: "/" + def.Name + " " + o.Name, Description: o.Description, Category: meta.Category(),
			})
		}
		if subs == 0 {
			sections[meta.Category()] = append(sections[meta.Category()], CmdInfo{
				Name: "/" + def.Name, Description: def.Description, Category: meta.Category(),
			})
		}
	}
	for _, cmds := range sections {
		slices.SortFunc(cmds, func(a, b CmdInfo) int { return strings.Compare(a.Name, b.Name) })
	}
	return sections
}

func render(tmplText string, sections map[string][]CmdInfo) ([]byte, error) {
	tmpl, err := template.New("readme").Parse(tmplText)
	if err != nil {
		return nil, err
	}

	cats := make([]string, 0, len(sections))
	for cat := range sections {
		cats = append(cats, cat)
	}
	slices.SortFunc(cats, func(a, b string) int {
		return cmp.Or(cmp.Compare(config.CategoryWeights[a], config.CategoryWeights[b]), strings.Compare(a, b))
	})

	var buf bytes.Buffer
	for _, cat := range cats {
		fmt.Fprintf(&buf, "### %s\n\n", cat)
		for _, c := range sections[cat] {
			fmt.Fprintf(&buf, "* **`%s`**\n  %s\n\n", c.Name, c.Description)
		}
	}

	data := map[string]any{
		"AppName":         version.AppName,
		"AppDescription":  version.AppDescription,
		"CommandSections": buf.String(),
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
