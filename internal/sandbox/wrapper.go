package sandbox

import "fmt"

// entryFilename is the boilerplate file spec.md §4.5 step 4 describes: it
// reads JSON-encoded args from stdin, invokes the user's function, and
// prints exactly one JSON result line to stdout.
const entryFilename = "entry.js"

const esmWrapperTemplate = `
%s

let __args = {};
process.stdin.resume();
process.stdin.setEncoding('utf8');
let __input = '';
process.stdin.on('data', (chunk) => { __input += chunk; });
process.stdin.on('end', async () => {
  try {
    __args = __input.length ? JSON.parse(__input) : {};
    const __fn = (typeof handler === 'function') ? handler
      : (typeof main === 'function') ? main
      : (typeof module !== 'undefined' && typeof module.exports === 'function') ? module.exports
      : null;
    if (!__fn) throw new Error('no exported function found (expected "handler" or "main")');
    const __result = await __fn(__args);
    process.stdout.write(JSON.stringify({success: true, result: __result}) + "\n");
  } catch (err) {
    process.stdout.write(JSON.stringify({success: false, error: String(err && err.message || err)}) + "\n");
    process.exitCode = 0;
  }
});
`

const cjsWrapperTemplate = `
%s

let __args = {};
process.stdin.resume();
process.stdin.setEncoding('utf8');
let __input = '';
process.stdin.on('data', (chunk) => { __input += chunk; });
process.stdin.on('end', async () => {
  try {
    __args = __input.length ? JSON.parse(__input) : {};
    const __fn = (typeof handler === 'function') ? handler
      : (typeof main === 'function') ? main
      : (typeof module !== 'undefined' && typeof module.exports === 'function') ? module.exports
      : null;
    if (!__fn) throw new Error('no exported function found (expected "handler" or "main")');
    const __result = await __fn(__args);
    process.stdout.write(JSON.stringify({success: true, result: __result}) + "\n");
  } catch (err) {
    process.stdout.write(JSON.stringify({success: false, error: String(err && err.message || err)}) + "\n");
    process.exitCode = 0;
  }
});
`

// renderEntryFile wraps userCode in the stdin/stdout protocol the runner
// expects. ESM and CJS differ only in how dependency resolution behaves at
// the Node.js module-loader level (the package.json "type" field selects
// that, not this template; the entry file is entry.js for both), so the
// wrapper body is
// identical; kept as two named templates anyway since the teacher's own
// wrapper generators (agentctl boilerplate) name the variant explicitly
// rather than branching on a boolean inline.
func renderEntryFile(kind ModuleKind, userCode string) string {
	switch kind {
	case ModuleESM:
		return fmt.Sprintf(esmWrapperTemplate, userCode)
	default:
		return fmt.Sprintf(cjsWrapperTemplate, userCode)
	}
}

// packageJSON renders the dependency manifest spec.md §4.5 step 2 requires
// for a freshly created pool entry.
func packageJSON(kind ModuleKind, deps map[string]string) string {
	typeField := `"type": "commonjs"`
	if kind == ModuleESM {
		typeField = `"type": "module"`
	}
	depsJSON := "{}"
	if len(deps) > 0 {
		b := "{\n"
		first := true
		for name, version := range deps {
			if !first {
				b += ",\n"
			}
			first = false
			b += fmt.Sprintf("    %q: %q", name, version)
		}
		b += "\n  }"
		depsJSON = b
	}
	return fmt.Sprintf("{\n  \"name\": \"agentrun-sandbox\",\n  %s,\n  \"dependencies\": %s\n}\n", typeField, depsJSON)
}
