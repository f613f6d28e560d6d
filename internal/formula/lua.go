package formula

import (
	"context"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// ParseError represents a formula parsing error with a friendly message.
type ParseError struct {
	Source  string // file or "<string>"
	Message string // User-friendly message
	Detail  string // Technical details
}

func (e *ParseError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %s: %s", e.Source, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// DecodeLua runs luaCode in the sandbox and reads the global formula table.
// The VM is bound to ctx; without a deadline, defaultParseTimeout applies.
func DecodeLua(ctx context.Context, luaCode string) (*Document, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultParseTimeout)
		defer cancel()
	}

	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if err := L.DoString(luaCode); err != nil {
		if ctx.Err() != nil {
			return nil, &ParseError{Message: "formula evaluation aborted", Detail: ctx.Err().Error()}
		}
		return nil, &ParseError{Message: "Lua error", Detail: trimTraceback(err.Error())}
	}

	return extractDocument(L)
}

// extractDocument reads the global "formula" table.
func extractDocument(L *lua.LState) (*Document, error) {
	v := L.GetGlobal(luaGlobalFormula)
	table, ok := v.(*lua.LTable)
	if !ok {
		return nil, &ParseError{
			Message: "missing or invalid 'formula' table",
			Detail:  fmt.Sprintf("expected table, got %s", v.Type()),
		}
	}

	doc := &Document{
		Name:      luaString(table, luaFieldName),
		Desc:      luaString(table, luaFieldDesc),
		Homepage:  luaString(table, luaFieldHomepage),
		Version:   luaString(table, luaFieldVersion),
		License:   luaString(table, luaFieldLicense),
		PublicKey: luaString(table, luaFieldPublicKey),
	}

	artifacts, ok := table.RawGetString(luaFieldArtifacts).(*lua.LTable)
	if !ok {
		return nil, &ParseError{Message: "missing or invalid 'artifacts' list", Detail: "expected table"}
	}

	for i := 1; i <= artifacts.Len(); i++ {
		entry, ok := artifacts.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, &ParseError{
				Message: "invalid artifact entry",
				Detail:  fmt.Sprintf("artifacts[%d] is %s, expected table", i, artifacts.RawGetInt(i).Type()),
			}
		}

		ad := ArtifactDoc{
			OS:           luaString(entry, luaFieldOS),
			Arch:         luaString(entry, luaFieldArch),
			URL:          luaString(entry, luaFieldURL),
			SHA256:       luaString(entry, luaFieldSHA256),
			Checksum:     luaString(entry, luaFieldChecksum),
			SignatureURL: luaString(entry, luaFieldSignature),
		}

		if install, ok := entry.RawGetString(luaFieldInstall).(*lua.LTable); ok {
			actions, err := extractActions(install, i)
			if err != nil {
				return nil, err
			}
			ad.Install = actions
		}

		doc.Artifacts = append(doc.Artifacts, ad)
	}

	return doc, nil
}

// extractActions reads an install list. A plain string entry is shorthand
// for {bin = "..."}.
func extractActions(table *lua.LTable, artifactIndex int) ([]ActionDoc, error) {
	var actions []ActionDoc
	for i := 1; i <= table.Len(); i++ {
		switch v := table.RawGetInt(i).(type) {
		case lua.LString:
			actions = append(actions, ActionDoc{Bin: string(v)})
		case *lua.LTable:
			actions = append(actions, ActionDoc{
				Bin:     luaString(v, luaFieldBin),
				Libexec: luaString(v, luaFieldLibexec),
				Share:   luaString(v, luaFieldShare),
				Kind:    luaString(v, luaFieldKind),
				Source:  luaString(v, luaFieldSource),
				Target:  luaString(v, luaFieldTarget),
			})
		default:
			return nil, &ParseError{
				Message: "invalid install entry",
				Detail:  fmt.Sprintf("artifacts[%d].install[%d] is %s", artifactIndex, i, v.Type()),
			}
		}
	}
	return actions, nil
}

func luaString(table *lua.LTable, field string) string {
	if v, ok := table.RawGetString(field).(lua.LString); ok {
		return string(v)
	}
	return ""
}

func trimTraceback(detail string) string {
	if idx := strings.Index(detail, "stack traceback"); idx > 0 {
		return strings.TrimSpace(detail[:idx])
	}
	return detail
}

// FormatError formats a ParseError for user display. In verbose mode the
// raw detail is kept on its own line.
func FormatError(err error, verbose bool) string {
	if parseErr, ok := err.(*ParseError); ok {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, trimTraceback(parseErr.Detail))
	}
	return err.Error()
}
