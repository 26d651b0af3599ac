package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteTree writes files (slash-separated path -> content) under root.
func WriteTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// TodoApp returns a small two-component project with no diagnostics:
// a todo list that renders todo items.
func TodoApp() map[string]string {
	return map[string]string{
		"src/components/todoList/todoList.schema.yaml": `componentName: todo-list
propsSchema:
  properties:
    title:
      type: string
    maxItems:
      type: number
  required:
    - title
events:
  item-selected: {}
methods:
  properties:
    focusInput: {}
`,
		"src/components/todoList/todoList.view.yaml": `template:
  - div#root.container:
      - input#newTodo type=text placeholder="What next?"
      - button#addButton: Add
      - $for item in items:
          - todo-item#todo${item.id}.item :item=${item} done=${item.done}
refs:
  newTodo:
    eventListeners:
      input:
        handler: handleInput
        debounce: 200
  addButton:
    eventListeners:
      click:
        action: addTodo
  window:
    eventListeners:
      keydown:
        handler: handleKeydown
`,
		"src/components/todoList/todoList.handlers.js": `export function handleInput(e, deps) {
  deps.store.setDraft(e.target.value);
}

export const handleKeydown = (e, deps) => {
  if (e.key === "Escape") deps.store.clearDraft();
};
`,
		"src/components/todoList/todoList.store.js": `export const createInitialState = () => ({ items: [], draft: "" });

export const selectItems = (state) => state.items;

export function addTodo(state) {
  state.items.push({ id: state.items.length, title: state.draft, done: false });
}
`,
		"src/components/todoList/todoList.methods.js": `export function focusInput() {
  this.querySelector("#newTodo").focus();
}
`,
		"src/components/todoItem/todoItem.schema.yaml": `componentName: todo-item
propsSchema:
  properties:
    item:
      type: object
    done:
      type: boolean
  required:
    - item
`,
		"src/components/todoItem/todoItem.view.yaml": `template:
  - li.todo:
      - span.label: text
`,
	}
}
