/*
Package sandbox executes page-side JavaScript in isolated goja runtimes.

Each runtime strips the Node.js surface, captures console output, and
exposes exactly one host object, __voyx, through which injected
userscripts reach their granted capabilities: namespaced storage,
guarded HTTP, notifications, clipboard, and context menu commands.

HTTP calls are asynchronous from the script's point of view. The bridge
queues each request together with its promise resolver; after the main
evaluation finishes, the runtime drains the queue, performing requests
through the capability client and resolving each promise on the VM
goroutine. Resolvers may enqueue further requests; the drain is bounded
so a script cannot spin forever.

Execution is bounded by a timeout and by the caller's context; both
interrupt the VM rather than abandoning the goroutine.
*/
package sandbox
