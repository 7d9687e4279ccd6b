package kiln

import (
	"encoding/json"
	"fmt"
)

// DefaultLiveReloadPath is where "kiln watch --serve" accepts live
// reload connections.
const DefaultLiveReloadPath = "/_kiln/reload"

// LiveReloadScript returns a script that connects to the live reload
// websocket at path and reloads the page when the server sends "reload"
// or the connection drops and comes back.
func LiveReloadScript(path string) Raw {
	if path == "" {
		path = DefaultLiveReloadPath
	}
	quoted, _ := json.Marshal(path)
	return Raw(fmt.Sprintf(`<script>(function(){
var p=%s;
function connect(retry){
var u=(location.protocol==="https:"?"wss://":"ws://")+location.host+p;
var ws=new WebSocket(u);
ws.onopen=function(){if(retry){location.reload();}};
ws.onmessage=function(e){if(e.data==="reload"){location.reload();}};
ws.onclose=function(){setTimeout(function(){connect(true);},500);};
}
connect(false);
})();</script>`, quoted))
}
