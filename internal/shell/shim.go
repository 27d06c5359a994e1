package shell

// hostShim gives the page the flutter_inappwebview object a native host
// would inject. Calls resolve asynchronously through __protectResolve.
const hostShim = `
(function () {
  if (window.flutter_inappwebview) return;

  var pending = {};
  var seq = 0;

  window.__protectResolve = function (id, result, error) {
    var p = pending[id];
    if (!p) return;
    delete pending[id];
    if (error) {
      p.reject(new Error(error));
    } else {
      p.resolve(result);
    }
  };

  window.flutter_inappwebview = {
    callHandler: function (handler) {
      var args = Array.prototype.slice.call(arguments, 1);
      var id = "c" + (++seq);
      return new Promise(function (resolve, reject) {
        pending[id] = { resolve: resolve, reject: reject };
        window.__protectCall(id, handler, args).catch(function (e) {
          delete pending[id];
          reject(e);
        });
      });
    }
  };

  window.addEventListener("load", function () {
    window.dispatchEvent(new Event("flutterInAppWebViewPlatformReady"));
  });

  document.addEventListener("click", function (e) {
    var a = e.target.closest("a");
    if (!a || !a.href) return;
    if (a.href.indexOf(window.location.origin) === 0) return;
    e.preventDefault();
    openExternal(a.href);
  });
})();
`
