package script

// Echo is a script that answers every method call with its own arguments.
// It learns where to reply from the announcement that opens its channel.
const Echo = `
var reply = null;

function onmessage(event) {
	var msg = event.message;
	if (msg.type === "channel announcement") {
		reply = msg.channel;
		return;
	}
	if (msg.action === "method" && reply !== null) {
		postMessage(reply, {action: "method", type: msg.type, value: msg.value});
	}
}
`
