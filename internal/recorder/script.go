package recorder

// captureScript is injected into every document of a recording session. It
// stays deliberately thin: listen for trusted events at the capture phase,
// snapshot the target element, and buffer the raw payloads until the Go side
// drains them via getEvents(). All interpretation - debouncing, filtering,
// selector construction - happens out of process so the page is disturbed as
// little as possible.
const captureScript = `
(function() {
  if (window.__wrAgent) { return; }

  var buffer = [];
  var MAX_BUFFER = 1000;
  var MAX_TEXT = 120;
  var MAX_ANCESTORS = 8;

  function push(ev) {
    if (buffer.length >= MAX_BUFFER) { buffer.shift(); }
    buffer.push(ev);
  }

  function typePosition(el) {
    var idx = 1, count = 0;
    var parent = el.parentElement || (el.parentNode && el.parentNode.host ? null : el.parentNode);
    if (!parent || !parent.children) { return { index: 1, count: 1 }; }
    for (var i = 0; i < parent.children.length; i++) {
      var sib = parent.children[i];
      if (sib.tagName === el.tagName) {
        count++;
        if (sib === el) { idx = count; }
      }
    }
    return { index: idx, count: count };
  }

  function ancestorChain(el) {
    var chain = [];
    var cur = el;
    while (cur && cur.nodeType === 1 && chain.length < MAX_ANCESTORS) {
      var pos = typePosition(cur);
      chain.push({
        tag: cur.tagName.toLowerCase(),
        id: cur.id || '',
        classes: cur.classList ? Array.prototype.slice.call(cur.classList) : [],
        typeIndex: pos.index,
        typeCount: pos.count
      });
      cur = cur.parentElement;
    }
    return chain;
  }

  function hostSelector(host) {
    if (host.id) { return '#' + host.id; }
    var testId = host.getAttribute('data-testid');
    if (testId) { return '[data-testid="' + testId + '"]'; }
    return host.tagName.toLowerCase();
  }

  // Chain of shadow hosts from the document down to the element's root,
  // empty for plain light-DOM elements.
  function shadowHostChain(el) {
    var hosts = [];
    var root = el.getRootNode();
    while (root instanceof ShadowRoot) {
      hosts.unshift(hostSelector(root.host));
      root = root.host.getRootNode();
    }
    return hosts;
  }

  function snapshot(el) {
    var attrs = {};
    for (var i = 0; i < el.attributes.length; i++) {
      var a = el.attributes[i];
      if (a.value && a.value.length <= 256) { attrs[a.name] = a.value; }
    }
    var text = (el.innerText || el.textContent || '').trim();
    if (text.length > MAX_TEXT) { text = ''; }
    return {
      tagName: el.tagName.toLowerCase(),
      text: text,
      attributes: attrs,
      ancestors: ancestorChain(el),
      shadowHosts: shadowHostChain(el)
    };
  }

  // composedPath()[0] gives the real target even when the event was
  // retargeted at a shadow boundary.
  function eventTarget(e) {
    var path = e.composedPath ? e.composedPath() : [];
    var t = path.length ? path[0] : e.target;
    return (t && t.nodeType === 1) ? t : null;
  }

  function isEditable(el) {
    var tag = el.tagName.toLowerCase();
    if (tag === 'textarea') { return true; }
    if (tag === 'input') {
      var t = (el.getAttribute('type') || 'text').toLowerCase();
      return ['checkbox', 'radio', 'button', 'submit', 'reset', 'file', 'range', 'color'].indexOf(t) === -1;
    }
    return el.isContentEditable;
  }

  function base(kind) {
    return { kind: kind, timestamp: Date.now(), url: window.location.href };
  }

  window.addEventListener('click', function(e) {
    if (!e.isTrusted) { return; }
    var el = eventTarget(e);
    if (!el) { return; }
    var tag = el.tagName.toLowerCase();
    if (tag === 'select' || tag === 'option') { return; }
    // Clicks into text controls only place focus; the typing that follows
    // is captured through input events.
    if (isEditable(el)) { return; }
    var ev = base('click');
    ev.snapshot = snapshot(el);
    ev.position = { x: e.clientX, y: e.clientY };
    push(ev);
  }, true);

  window.addEventListener('input', function(e) {
    if (!e.isTrusted) { return; }
    var el = eventTarget(e);
    if (!el || !isEditable(el)) { return; }
    var ev = base('input');
    ev.snapshot = snapshot(el);
    ev.value = el.isContentEditable ? el.textContent : el.value;
    push(ev);
  }, true);

  window.addEventListener('change', function(e) {
    if (!e.isTrusted) { return; }
    var el = eventTarget(e);
    if (!el || el.tagName.toLowerCase() !== 'select') { return; }
    var ev = base('select');
    ev.snapshot = snapshot(el);
    ev.value = el.value;
    push(ev);
  }, true);

  window.addEventListener('keydown', function(e) {
    if (!e.isTrusted) { return; }
    var el = eventTarget(e);
    if (!el) { return; }
    var ev = base('keydown');
    ev.snapshot = snapshot(el);
    ev.key = e.key;
    ev.editable = isEditable(el);
    push(ev);
  }, true);

  window.addEventListener('scroll', function(e) {
    if (!e.isTrusted) { return; }
    var ev = base('scroll');
    ev.scroll = { x: window.scrollX, y: window.scrollY };
    push(ev);
  }, true);

  function recordNavigation() {
    push(base('navigation'));
  }

  // Full page loads re-run this script, so install time is navigation time.
  // History API calls are wrapped for single-page apps.
  recordNavigation();
  var origPush = history.pushState;
  history.pushState = function() {
    var r = origPush.apply(this, arguments);
    recordNavigation();
    return r;
  };
  var origReplace = history.replaceState;
  history.replaceState = function() {
    var r = origReplace.apply(this, arguments);
    recordNavigation();
    return r;
  };
  window.addEventListener('popstate', recordNavigation);

  window.__wrAgent = {
    recording: true,
    getEvents: function() {
      var out = buffer;
      buffer = [];
      return out;
    }
  };
})();
`
