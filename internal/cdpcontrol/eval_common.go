package cdpcontrol

import "encoding/json"

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// buildIIFE wraps body so that any thrown error still yields an envelope.
func buildIIFE(body string) string {
	return "(function(){\ntry {\n" + body + `
} catch (err) {
return JSON.stringify({ok:false,error_code:` + jsString(CodeEvalFailure) + `,error_message:String(err && err.message || err)});
}
})()`
}

// jsCapturePage serialises the live document. The page is only read.
func jsCapturePage() string {
	return buildIIFE(`
var root = document.documentElement;
if (!root) {
  return JSON.stringify({ok:false,error_code:` + jsString(CodeEvalFailure) + `,error_message:"document has no root element"});
}
return JSON.stringify({ok:true,data:{
  url: String(window.location.href),
  title: String(document.title || ""),
  html: root.outerHTML
}});`)
}
