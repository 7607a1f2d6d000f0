// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/jeranaias/parley/internal/util"
)

// HandleModels lists the model catalog, marking the selected model.
func HandleModels(args Args, w io.Writer) error {
	store, err := openSettings()
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := NewSessionSettings(store, args)
	if err != nil {
		return err
	}
	current := sess.ModelID()
	catalog := store.Catalog()

	if args.JSON {
		data := make([]ModelData, 0, len(catalog.All()))
		for _, m := range catalog.All() {
			data = append(data, ModelData{
				ID:           m.ID,
				Name:         m.DisplayName(),
				ChatPath:     m.ChatPath,
				ContinuePath: m.ContinuePath,
				Current:      m.ID == current,
			})
		}
		return NewJSONResponse("models", data).Print(w)
	}

	idWidth := 0
	for _, m := range catalog.All() {
		idWidth = max(idWidth, util.Width(m.ID))
	}
	for _, m := range catalog.All() {
		mark := " "
		if m.ID == current {
			mark = SuccessStyle.Render("*")
		}
		fmt.Fprintf(w, "%s %s  %s  %s\n",
			mark,
			ValueStyle.Render(util.PadRight(m.ID, idWidth)),
			DimStyle.Render(m.ChatPath+" | "+m.ContinuePath),
			m.DisplayName())
	}
	if !args.Quiet {
		fmt.Fprintf(w, "\n%s\n", DimStyle.Render("Backend: "+sess.BaseURL()))
	}
	return nil
}
